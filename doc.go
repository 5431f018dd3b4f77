// Package webpath mirrors directory trees between a local filesystem and a
// remote host over SSH/SFTP.
//
// This package provides:
//   - A single SFTP session with key, password, certificate and bastion auth
//   - Path, a pathlib-style handle on remote files and directories
//   - Syncer, which copies trees in both directions, removes remote trees
//     and pushes or prunes only what differs from the local side
//
// # Sessions
//
// A Client owns one SSH connection and one SFTP session. Close it when done,
// or let WithClient do that:
//
//	config := webpath.Config{
//		Host:    "example.com",
//		User:    "deploy",
//		KeyPath: "~/.ssh/id_ed25519",
//	}
//
//	err := webpath.WithClient(config, func(c *webpath.Client) error {
//		return c.Path("/srv/www").Mkdir(webpath.MkdirOptions{Parents: true, ExistOK: true})
//	})
//
// Connection failures are returned as they happen. Nothing is retried.
//
// # Paths
//
// Path joins segments with forward slashes, like the "/" operator on a
// pathlib path: an absolute segment replaces everything before it. Text
// operations take an explicit encoding name; the empty name means UTF-8:
//
//	p := client.Path("/srv/www").Join("index.html")
//	html, err := p.ReadText("")
//	_, err = p.Parent().Join("legacy.txt").WriteText("café", "latin1")
//
// # Syncing
//
// Syncer compares trees by relative path and kind. Modification times are
// compared in whole seconds because SFTP version 3 carries no more:
//
//	s := webpath.NewSyncer(client)
//	res, err := s.PutDiff(ctx, "./public", "/srv/www", nil)
//	res, err = s.RmDiff(ctx, "./public", "/srv/www", nil)
//
// PutR and GetR always copy every file. RmR removes a remote tree children
// first. All operations stop at the first error and leave whatever was
// already done in place.
package webpath
