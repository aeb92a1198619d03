package version

// Version is the semantic version of the tally binary, stamped at build
// time via -ldflags.
var Version = "0.1.0-dev"
