// Package cli provides the interactive WhistleDrop whistleblower client.
//
// The client has two views. The landing view "/" offers login with an
// existing passphrase and registration, which shows a freshly generated
// passphrase exactly once. The protected view "/upload" lists the user's
// uploads, refreshes them in the background and lets the user select, upload
// and delete PDF files. Navigating to "/upload" without a session, or to any
// unknown route, lands on "/".
//
// The access token lives only in memory; exiting the program is a logout.
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
