// Package baseline records the vulnerable packages of a reference audit and
// compares later audits against it.
//
// It supports CI workflows that want to:
//   - Fail only on NEW or ESCALATED packages, not known issues
//   - Track when packages get fixed
//   - Refresh the baseline on main branch merges
//
// # Baseline File Format
//
//	{
//	  "version": "1.0",
//	  "created_at": "2026-01-15T10:30:00Z",
//	  "updated_at": "2026-01-20T14:45:00Z",
//	  "report_id": "8f0c…",
//	  "app": "storefront",
//	  "packages": [
//	    {
//	      "name": "minimist",
//	      "severity": "critical",
//	      "direct": false,
//	      "advisories": ["https://github.com/advisories/GHSA-xvch-5gv4-984h"],
//	      "first_seen": "2026-01-15T10:30:00Z"
//	    }
//	  ],
//	  "summary": {"total_packages": 1, "highest_severity": "critical"}
//	}
//
// # Usage
//
//	auditview check -baseline .auditview-baseline.json < audit.json
//	auditview check -save-baseline .auditview-baseline.json < audit.json
//
// A package is keyed by name because npm reports one record per package.
// It counts as escalated when its severity rises or it gains an advisory
// the baseline did not list.
package baseline
