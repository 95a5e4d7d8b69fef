// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley-tui/internal/export"
	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/ui/components"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command.
type CommandHandler func(m *Model, args []string) (tea.Model, tea.Cmd)

const msgExportFailed = "Failed to download your data."

// commandHandlers maps command names to their handler functions.
var commandHandlers = map[string]CommandHandler{
	// Help & Meta
	"help": handleHelpCommand,
	"h":    handleHelpCommand,
	"?":    handleHelpCommand,
	"quit": handleQuitCommand,
	"q":    handleQuitCommand,

	// Attachments
	"image": attachCommand(model.AttachmentImage),
	"img":   attachCommand(model.AttachmentImage),
	"video": attachCommand(model.AttachmentVideo),
	"file":  attachCommand(model.AttachmentFile),
	"voice": handleVoiceCommand,
	"save":  handleSaveCommand,

	// Contacts
	"search":  handleSearchCommand,
	"find":    handleSearchCommand,
	"add":     handleAddCommand,
	"remove":  handleRemoveCommand,
	"block":   handleBlockCommand,
	"unblock": handleUnblockCommand,

	// Conversation & Account
	"clear":      handleClearCommand,
	"export":     handleExportCommand,
	"transcript": handleTranscriptCommand,
	"settings":   handleSettingsCommand,
	"logout":     handleLogoutCommand,
}

type commandDoc struct {
	usage string
	desc  string
}

// commandHelp is the command list shown in the help overlay.
var commandHelp = []commandDoc{
	{"/image <path>", "attach an image"},
	{"/video <path>", "attach a video"},
	{"/file <path>", "attach a file"},
	{"/voice", "record a voice message"},
	{"/save [n]", "download the nth newest attachment"},
	{"/search [query]", "find people"},
	{"/add  /remove", "add or remove this contact"},
	{"/block  /unblock", "block or unblock this user"},
	{"/clear [all]", "delete chats, for everyone with all"},
	{"/export [dir]", "download all your data"},
	{"/transcript [md|json]", "save this conversation"},
	{"/settings", "open settings"},
	{"/logout", "log out"},
	{"/help", "show this help"},
}

// handleCommand runs a slash command typed into the composer.
func (m Model) handleCommand(content string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return m, nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	handler, ok := commandHandlers[name]
	if !ok {
		m.toasts.Error(fmt.Sprintf("Unknown command: /%s. Type /help for the list.", name))
		return m, nil
	}
	return handler(&m, args)
}

// selectedPeer returns the selected peer, reporting a toast when there is
// none.
func (m *Model) selectedPeer() (*model.Peer, bool) {
	peer := m.deps.Chats.Selected()
	if peer == nil {
		m.toasts.Error(msgSelectPeer)
		return nil, false
	}
	return peer, true
}

// =============================================================================
// HELP & META
// =============================================================================

func handleHelpCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.showHelp = true
	return *m, nil
}

func handleQuitCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.debounce.Stop()
	return *m, tea.Quit
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func attachCommand(kind model.AttachmentKind) CommandHandler {
	return func(m *Model, args []string) (tea.Model, tea.Cmd) {
		if len(args) == 0 {
			m.toasts.Error(fmt.Sprintf("Usage: /%s <path>", kind))
			return *m, nil
		}
		return m.stage(expandHome(strings.Join(args, " ")), kind)
	}
}

func handleVoiceCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return m.toggleRecording()
}

// handleSaveCommand downloads an attachment from the thread. n counts
// back from the newest attachment, starting at 1.
func handleSaveCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if _, ok := m.selectedPeer(); !ok {
		return *m, nil
	}
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			m.toasts.Error("Usage: /save [n]")
			return *m, nil
		}
		n = v
	}

	var found *model.Message
	msgs := m.deps.Chats.Messages()
	for i := len(msgs) - 1; i >= 0 && found == nil; i-- {
		if msgs[i].Attachment() != nil {
			if n--; n == 0 {
				found = &msgs[i]
			}
		}
	}
	if found == nil {
		m.toasts.Error("No attachment to save.")
		return *m, nil
	}

	a := found.Attachment()
	dir := m.exportDir()
	ctx := m.ctx
	return *m, func() tea.Msg {
		path, err := saveAttachment(ctx, a, found.ID, dir)
		return savedMsg{path: path, err: err}
	}
}

// saveAttachment writes a into dir under its file name, or a name made
// from the message id and MIME type.
func saveAttachment(ctx context.Context, a *model.Attachment, msgID, dir string) (string, error) {
	name := attachmentName(a)
	if name == "" {
		name = a.Kind.String() + "-" + msgID
		if mime, _, err := media.DecodeDataURL(a.Data); err == nil {
			if exts := mimeExtension(mime); exts != "" {
				name += exts
			}
		}
	}
	path := filepath.Join(dir, filepath.Base(name))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 2 * time.Minute}
	if _, err := media.Fetch(ctx, client, a.Data, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}

// =============================================================================
// CONTACTS
// =============================================================================

func handleSearchCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	return m.openSearch(strings.Join(args, " "))
}

// contactCommand runs a contact mutation against the selected peer and
// refreshes the roster.
func contactCommand(m *Model, call func(ctx context.Context, id string) (*model.Identity, error)) (tea.Model, tea.Cmd) {
	peer, ok := m.selectedPeer()
	if !ok {
		return *m, nil
	}
	ctx := m.ctx
	id := peer.ID
	return *m, func() tea.Msg {
		_, err := call(ctx, id)
		return opDoneMsg{err: err, reload: err == nil}
	}
}

func handleAddCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return contactCommand(m, m.deps.Session.AddContact)
}

func handleRemoveCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return contactCommand(m, m.deps.Session.RemoveContact)
}

func handleBlockCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return contactCommand(m, m.deps.Session.Block)
}

func handleUnblockCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return contactCommand(m, m.deps.Session.Unblock)
}

// =============================================================================
// CONVERSATION & ACCOUNT
// =============================================================================

// handleClearCommand deletes the conversation for the user only, or for
// both sides with "all".
func handleClearCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	peer, ok := m.selectedPeer()
	if !ok {
		return *m, nil
	}
	onlyForMe := !(len(args) > 0 && strings.EqualFold(args[0], "all"))
	chats := m.deps.Chats
	ctx := m.ctx
	id := peer.ID
	return *m, func() tea.Msg {
		return opDoneMsg{err: chats.ClearChats(ctx, id, onlyForMe)}
	}
}

func handleExportCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	dir := m.exportDir()
	if len(args) > 0 {
		dir = expandHome(strings.Join(args, " "))
	}
	return *m, m.exportArchive(dir)
}

// exportArchive saves the account archive into dir.
func (m *Model) exportArchive(dir string) tea.Cmd {
	sess := m.deps.Session
	ctx := m.ctx
	m.toasts.Status("Preparing your data...")
	return func() tea.Msg {
		var downloadErr error
		src := func(ctx context.Context, w io.Writer) (int64, error) {
			n, err := sess.ExportData(ctx, w)
			downloadErr = err
			return n, err
		}
		sum, err := export.SaveArchive(ctx, src, dir)
		return exportDoneMsg{summary: sum, err: err, reported: downloadErr != nil}
	}
}

func (m Model) handleExportDone(msg exportDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.Warn().Err(msg.err).Msg("export failed")
		if !msg.reported {
			m.toasts.Error(msgExportFailed)
		}
		return m, nil
	}
	m.toasts.Success(fmt.Sprintf("Saved %s (%s, %d files).",
		msg.summary.Path, components.Size(int(msg.summary.Size)), len(msg.summary.Files)))
	return m, nil
}

func handleTranscriptCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	peer, ok := m.selectedPeer()
	if !ok {
		return *m, nil
	}
	format := ""
	if len(args) > 0 {
		format = strings.ToLower(args[0])
	}
	opts := &export.Options{OutputDir: m.exportDir(), IncludeTimestamps: true}
	exporter, err := export.ExporterFor(format, opts)
	if err != nil {
		m.toasts.Error("Usage: /transcript [md|json]")
		return *m, nil
	}
	t := export.NewTranscript(m.deps.Session.Identity(), *peer, m.deps.Chats.Messages())
	return *m, func() tea.Msg {
		path, err := export.ExportToFile(t, exporter, opts)
		return savedMsg{path: path, err: err}
	}
}

func (m Model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, export.ErrEmptyTranscript):
		m.toasts.Error("Nothing to save yet.")
	case msg.err != nil:
		m.log.Warn().Err(msg.err).Msg("save failed")
		m.toasts.Error("Failed to save: " + msg.err.Error())
	default:
		m.toasts.Success("Saved " + msg.path)
	}
	return m, nil
}

func handleSettingsCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return m.openSettings()
}

func handleLogoutCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return *m, m.logout()
}

// logout ends the session; refresh moves to the login screen once the
// session store reports the change.
func (m *Model) logout() tea.Cmd {
	sess := m.deps.Session
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: sess.EndSession(ctx)}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) exportDir() string {
	if m.deps.ExportDir != "" {
		return m.deps.ExportDir
	}
	return "."
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// mimeExtension returns a file extension for a MIME type.
func mimeExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm", "audio/webm":
		return ".webm"
	case "audio/wave", "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "application/pdf":
		return ".pdf"
	}
	return ""
}
