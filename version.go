package triage

// Version is the release of the triage engine, overridden at build time with
// -ldflags "-X github.com/aretw0/triage.Version=...".
var Version = "0.1.0-dev"
