package scriptgen

// Project is a generated Playwright suite, file path to content. Paths
// use forward slashes relative to the suite root.
type Project struct {
	Files     map[string]string
	SpecPath  string
	TestCount int
}
