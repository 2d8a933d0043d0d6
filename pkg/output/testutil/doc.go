// Package testutil provides assertions shared by the writer tests.
//
//	testutil.ValidateHTML(t, out)
//	testutil.AssertContains(t, out, []string{"minimist", "lodash"})
//	testutil.AssertOrder(t, out, "minimist", "lodash")
//
// Each Validate function checks the structure one output format promises,
// not its content.
package testutil
