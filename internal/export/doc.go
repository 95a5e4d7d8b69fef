// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package export saves chat data to disk.

Two kinds of export exist:

  - The account archive the server builds (GET /users/export). SaveArchive
    streams it to a file, chat-export.zip by default, writing through a
    temporary file so a failed download never leaves a partial archive, and
    reports what the archive contains.
  - A transcript of one conversation, rendered locally as Markdown or JSON
    by an Exporter.

Usage:

	sum, err := export.SaveArchive(ctx, sess.ExportData, export.DefaultArchiveName)

	t := export.NewTranscript(me, peer, messages)
	path, err := export.ExportToFile(t, export.NewMarkdownExporter(nil), nil)
*/
package export
