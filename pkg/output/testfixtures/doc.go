// Package testfixtures provides the shared `npm audit --json` samples used
// across the writer, pipeline, server and CLI tests.
//
// The samples live in pkg/audit/testdata so that pkg/audit can test against
// them without importing this package:
//
//	scenario.json - lodash (high, direct) pulled in through minimist (critical)
//	mixed.json    - every fixAvailable and via shape npm emits
//	clean.json    - no vulnerabilities
//	enolock.json  - npm's error payload when package-lock.json is missing
//
// Usage:
//
//	doc := testfixtures.Document(t, testfixtures.Scenario, testfixtures.App())
//	body := testfixtures.Raw(t, testfixtures.Clean)
package testfixtures
