// Package policy evaluates an audit against a user-defined gate to decide
// the CI pass/fail outcome of `auditview check`.
//
// # Policy File Format
//
//	version: "1.0"
//	name: "production-gate"
//
//	fail_on:
//	  severity:
//	    critical: 0        # Fail on any critical package
//	    high: 2            # Fail if more than 2 high severity packages
//	  breaking: true       # Fail if a fix needs a semver-major upgrade
//	  no_fix: 5            # Fail if more than 5 packages have no fix
//	  direct_only: false   # Count transitive packages too
//
//	fail_if: "moderate + high > 10 && auto_fix == 0"
//
//	ignore:
//	  packages:
//	    - "left-pad"
//	  advisories:
//	    - "GHSA-p6mc-m468-83gw"
//
// fail_if is a Tengo expression over the integers critical, high,
// moderate, low, info, total, packages, direct, indirect, auto_fix, no_fix,
// upgrade, breaking and unknown_fix, counted after the ignore rules. Only
// the math module is importable.
//
// # Usage
//
//	p, err := policy.LoadPolicy("policy.yaml")
//	if err != nil {
//	    return err
//	}
//	result, err := p.Evaluate(ctx, doc.Vulnerabilities)
//	if err != nil {
//	    return err
//	}
//	if !result.Pass {
//	    os.Exit(result.ExitCode)
//	}
//
// A Policy is safe for concurrent use after parsing.
package policy
