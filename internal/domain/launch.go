package domain

import "encoding/json"

// LaunchRequest carries everything needed to launch one session from a
// vsif file. Environment, Attributes and Params are raw JSON fragments
// handed to the server untouched.
type LaunchRequest struct {
	VSIF        string
	Environment json.RawMessage
	Attributes  json.RawMessage
	Params      json.RawMessage
	Credentials *FarmCredentials
	SourceFile  string
	SourceShell string
}

// FarmCredentials selects how the compute farm authenticates the
// launched runs: an explicit username/password pair, or the user's
// public key when PublicKey is set.
type FarmCredentials struct {
	Username  string
	Password  string
	PublicKey bool
}
