// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// notechat - streaming LLM chat over a note vault.
//
// Command: notechat [flags]
//
// Flags:
//   -vault DIR      Vault directory (overrides config)
//   -profile NAME   Model profile to use (overrides config)
//   -resume N       Resume the Nth most recent transcript
//
// Interactive Commands (during chat):
//   /help               Show available commands
//   /models             List models the endpoint offers
//   /attach PATH        Attach a note as shared context
//   /docs               Show attached documents
//   /pin N, /mute N     Toggle document flags
//   /detach N           Remove a document
//   /image PATH         Queue an image for the next message
//   /regen              Regenerate the last response
//   /swipe N            Select response variant N of the last entry
//   /tokens             Show the approximate context size
//   /save, /list        Persist / list transcripts
//   /export PATH        Write this transcript as Markdown
//   /quit               Exit
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/jeranaias/notechat/internal/asset"
	"github.com/jeranaias/notechat/internal/catalog"
	"github.com/jeranaias/notechat/internal/chat"
	"github.com/jeranaias/notechat/internal/config"
	"github.com/jeranaias/notechat/internal/provider"
	"github.com/jeranaias/notechat/internal/storage"
	"github.com/jeranaias/notechat/internal/transcript"
	"github.com/jeranaias/notechat/internal/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notechat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	vaultFlag := flag.String("vault", "", "vault directory (overrides config)")
	profileFlag := flag.String("profile", "", "model profile to use")
	resumeFlag := flag.Int("resume", -1, "resume the Nth most recent transcript")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *profileFlag != "" {
		cfg.CurrentProfile = *profileFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if *vaultFlag != "" {
		cfg.VaultDir = *vaultFlag
	}
	if cfg.VaultDir == "" {
		cfg.VaultDir = "."
	}

	settings, err := cfg.Resolve()
	if err != nil {
		return err
	}

	store, err := storage.NewTranscriptStore()
	if err != nil {
		return err
	}

	tr := transcript.New()
	if *resumeFlag >= 0 {
		loaded, err := store.LoadByIndex(*resumeFlag)
		if err != nil {
			return err
		}
		tr = loaded
	}

	v := vault.NewDirVault(cfg.VaultDir)
	engine := chat.NewEngine(tr, settings, v).WithObserver(&consoleSink{})

	// Auto-attached document follows the most recently edited note.
	if watcher, err := vault.NewWatcher(v, 0); err == nil {
		if err := watcher.Watch(); err == nil {
			stop := engine.FollowActiveFile(watcher.Changes())
			defer stop()
			defer watcher.Close()
		}
	}

	session := &replSession{
		cfg:      cfg,
		settings: settings,
		engine:   engine,
		store:    store,
		vault:    v,
	}
	return session.loop()
}

// =============================================================================
// REPL SESSION
// =============================================================================

type replSession struct {
	cfg      *config.Config
	settings config.ChatSettings
	engine   *chat.Engine
	store    *storage.TranscriptStore
	vault    *vault.DirVault

	// Images queued for the next message
	pendingImages []*asset.Image
}

func (s *replSession) loop() error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyFile == "" {
			return
		}
		if err := config.EnsureConfigDir(); err != nil {
			return
		}
		// SECURITY: history may contain sensitive prompts, owner-only
		f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return
		}
		defer f.Close()
		line.WriteHistory(f)
	}()

	// Ctrl+C during a stream cancels it instead of killing the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			s.engine.Abort()
			fmt.Fprintln(os.Stderr, "\n[cancelled]")
		}
	}()

	fmt.Printf("notechat %s  model=%s  vault=%s\n", s.cfg.Version, s.settings.Model, s.vault.Root())
	fmt.Println("Type /help for commands.")

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			// Ctrl+C at the prompt or EOF both exit cleanly
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := s.handleCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[error] %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		images := s.pendingImages
		s.pendingImages = nil

		fmt.Println()
		if err := s.engine.Send(context.Background(), input, images); err != nil {
			fmt.Fprintf(os.Stderr, "[error] %v\n", err)
			continue
		}
		if msg := s.engine.LastError(); msg != "" {
			fmt.Fprintf(os.Stderr, "\n[error] %s\n", msg)
		}
		fmt.Println()
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (s *replSession) handleCommand(input string) (quit bool, err error) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h":
		printHelp()
		return false, nil

	case "/models":
		return false, s.listModels()

	case "/attach":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /attach PATH")
		}
		doc := s.engine.Transcript().AttachDocument(strings.Join(args, " "))
		fmt.Printf("attached %s\n", doc.Path)
		return false, nil

	case "/docs":
		s.printDocs()
		return false, nil

	case "/pin", "/mute", "/detach":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: %s N", cmd)
		}
		return false, s.documentOp(cmd, args[0])

	case "/image":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /image PATH")
		}
		img, err := asset.ReadFile(strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		s.pendingImages = append(s.pendingImages, img)
		fmt.Printf("queued %s image (%d bytes) for the next message\n", img.MIME, len(img.Data))
		return false, nil

	case "/regen", "/r":
		return false, s.regenerate()

	case "/swipe":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /swipe N")
		}
		return false, s.selectSwipe(args[0])

	case "/tokens":
		fmt.Printf("~%d tokens of context\n", s.engine.ApproxTokens())
		return false, nil

	case "/save":
		id, err := s.store.Save(s.engine.Transcript())
		if err != nil {
			return false, err
		}
		fmt.Printf("saved %s\n", id)
		return false, nil

	case "/list":
		return false, s.listTranscripts()

	case "/export":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /export PATH")
		}
		path := strings.Join(args, " ")
		md := storage.ExportMarkdown(s.engine.Transcript())
		if err := os.WriteFile(path, []byte(md), 0644); err != nil {
			return false, err
		}
		fmt.Printf("exported %s\n", path)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func printHelp() {
	fmt.Print(`Commands:
  /models        List models the endpoint offers
  /attach PATH   Attach a note as shared context
  /docs          Show attached documents
  /pin N         Toggle pin on document N
  /mute N        Toggle mute on document N
  /detach N      Remove document N
  /image PATH    Queue an image for the next message
  /regen         Regenerate the last response
  /swipe N       Select response variant N of the last entry
  /tokens        Show approximate context size
  /save          Persist this transcript
  /list          List saved transcripts
  /export PATH   Write this transcript as Markdown
  /quit          Exit
`)
}

func (s *replSession) listModels() error {
	cachePath := s.cfg.ModelCachePath
	if cachePath == "" {
		p, err := config.DefaultModelCachePath()
		if err != nil {
			return err
		}
		cachePath = p
	}

	cache, err := catalog.OpenCache(cachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	adapter := provider.Resolve(s.settings.Endpoint)
	listURL := adapter.Endpoint(provider.EndpointModels)

	models, err := cache.Models(context.Background(), listURL, s.settings.APIKey)
	if err != nil {
		return err
	}

	for _, m := range models {
		flags := ""
		if m.SupportsImages {
			flags += " [images]"
		}
		if m.SupportsReasoning {
			flags += " [reasoning]"
		}
		marker := "  "
		if m.ID == s.settings.Model {
			marker = "* "
		}
		fmt.Printf("%s%s%s\n", marker, m.ID, flags)
	}
	return nil
}

func (s *replSession) printDocs() {
	docs := s.engine.Transcript().Documents
	if len(docs) == 0 {
		fmt.Println("no documents attached")
		return
	}
	for i, d := range docs {
		flags := ""
		if d.Pinned {
			flags += " [pinned]"
		}
		if d.Muted {
			flags += " [muted]"
		}
		fmt.Printf("%d: %s%s\n", i, d.Path, flags)
	}
}

func (s *replSession) documentOp(cmd, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("not a document number: %s", arg)
	}
	docs := s.engine.Transcript().Documents
	if n < 0 || n >= len(docs) {
		return fmt.Errorf("no document %d", n)
	}

	switch cmd {
	case "/pin":
		docs[n].Pinned = !docs[n].Pinned
		fmt.Printf("%s pinned=%v\n", docs[n].Path, docs[n].Pinned)
	case "/mute":
		docs[n].Muted = !docs[n].Muted
		fmt.Printf("%s muted=%v\n", docs[n].Path, docs[n].Muted)
	case "/detach":
		path := docs[n].Path
		s.engine.Transcript().RemoveDocument(docs[n].ID)
		fmt.Printf("detached %s\n", path)
	}
	return nil
}

func (s *replSession) regenerate() error {
	tr := s.engine.Transcript()
	var target *transcript.Entry
	for i := len(tr.Entries) - 1; i >= 0; i-- {
		if tr.Entries[i].Role == transcript.RoleAssistant {
			target = tr.Entries[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("nothing to regenerate")
	}

	fmt.Println()
	if err := s.engine.Regenerate(context.Background(), target); err != nil {
		return err
	}
	if msg := s.engine.LastError(); msg != "" {
		fmt.Fprintf(os.Stderr, "\n[error] %s\n", msg)
	}
	fmt.Println()
	return nil
}

func (s *replSession) selectSwipe(arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("not a swipe number: %s", arg)
	}

	tr := s.engine.Transcript()
	last := tr.LastEntry()
	if last == nil || last.Role != transcript.RoleAssistant {
		return fmt.Errorf("no assistant entry to swipe")
	}
	if n < 0 || n >= last.SwipeCount() {
		return fmt.Errorf("entry has %d variant(s)", last.SwipeCount())
	}

	last.SelectSwipe(n)
	fmt.Printf("--- variant %d/%d ---\n%s\n", n+1, last.SwipeCount(), last.SelectedSwipe().DisplayContent())
	return nil
}

func (s *replSession) listTranscripts() error {
	metas, err := s.store.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no saved transcripts")
		return nil
	}
	for i, m := range metas {
		fmt.Printf("%d: %s  (%d entries, %s)\n", i, m.Title, m.EntryCount, m.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// =============================================================================
// CONSOLE SINK
// =============================================================================

// consoleSink prints the folded stream as it arrives.
type consoleSink struct {
	inReasoning bool
}

func (c *consoleSink) OnText(delta string) {
	if c.inReasoning {
		fmt.Print("\n")
		c.inReasoning = false
	}
	fmt.Print(delta)
}

func (c *consoleSink) OnReasoning(delta string) {
	if !c.inReasoning {
		fmt.Print("[thinking] ")
		c.inReasoning = true
	}
	fmt.Print(delta)
}

func (c *consoleSink) OnImage(string) {
	fmt.Print("\n[image received]\n")
}

func (c *consoleSink) OnStatus(int) {}

func (c *consoleSink) OnDone() {}

func (c *consoleSink) OnError(string) {}

func (c *consoleSink) OnAbort() {}

func (c *consoleSink) OnClose() {}
