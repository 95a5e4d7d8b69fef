// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across parley.
//
// AtomicWriteFile writes through a temp file in the target directory,
// fsyncs it and renames it into place, so readers never observe a
// partially written config or preferences file.
//
//	err := util.AtomicWriteFile(path, data, 0600)
package util
