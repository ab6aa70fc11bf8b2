// Package google connects the triage pipeline to Google Workspace: it reads
// recent messages from Gmail and records important ones as Calendar events.
//
// Both clients authenticate with an installed-app OAuth client. The first run
// prints a consent URL and reads the authorization code from the terminal;
// the resulting token is cached on disk and refreshed automatically.
package google
