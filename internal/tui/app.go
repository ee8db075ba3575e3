// Package tui is the terminal client: a compose box with its banners, the
// buddy list and the messages sent from this client, all driven by the
// daemon's event stream.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/tui/keys"
	"github.com/matheus3301/zpp/internal/tui/model"
	"github.com/matheus3301/zpp/internal/tui/ui"
	"github.com/matheus3301/zpp/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	viewCompose  = "compose"
	viewUsers    = "users"
	viewMessages = "messages"

	pageMain = "main"
	pageHelp = "help"

	rpcTimeout = 10 * time.Second
)

var _ model.Daemon = (*api.Client)(nil)

// Options configure the client.
type Options struct {
	Session    string
	EnterSends bool
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	main     *tview.Flex
	right    *tview.Flex
	vm       *model.ViewModel
	registry *keys.Registry
	flash    *ui.FlashModel
	theme    *ui.Theme

	info      *ui.SessionInfo
	menu      *ui.Menu
	crumbs    *ui.Crumbs
	flashBar  *ui.FlashBar
	prompt    *ui.Prompt
	statusBar *views.StatusBar
	banners   *views.BannerView
	composer  *views.Composer
	users     *views.PresenceList
	messages  *views.MessageView
	help      *views.HelpView

	focus     string
	prompting bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c model.Daemon, opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(c),
		registry:  keys.NewRegistry(),
		flash:     ui.NewFlashModel(),
		theme:     theme,
		info:      ui.NewSessionInfo(theme),
		menu:      ui.NewMenu(theme),
		crumbs:    ui.NewCrumbs(theme),
		flashBar:  ui.NewFlashBar(theme),
		prompt:    ui.NewPrompt(theme),
		statusBar: views.NewStatusBar(opts.Session),
		banners:   views.NewBannerView(theme),
		composer:  views.NewComposer(theme),
		users:     views.NewPresenceList(theme),
		messages:  views.NewMessageView(theme),
		help:      views.NewHelpView(theme),
		focus:     viewCompose,
		ctx:       ctx,
		cancel:    cancel,
	}
	a.composer.SetEnterSends(opts.EnterSends)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("command", &keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Description: "::command", Visible: true,
		Handler: a.showPrompt,
	})
	a.registry.AddGlobal("focus", &keys.Action{
		Key:         tcell.KeyTab,
		Description: "Tab:next pane", Visible: true,
		Handler: a.cycleFocus,
	})
	a.registry.AddGlobal("help", &keys.Action{
		Key: tcell.KeyRune, Rune: '?',
		Description: "?:help", Visible: true,
		Handler: a.showHelp,
	})
	a.registry.AddGlobal("quit", &keys.Action{
		Key:         tcell.KeyCtrlC,
		Description: "Ctrl-C:quit", Visible: true,
		Handler: a.Stop,
	})

	a.registry.AddView(viewCompose, "send", &keys.Action{
		Key:         tcell.KeyCtrlS,
		Description: "Ctrl-S:send", Visible: true,
		Handler: a.composer.Submit,
	})
	a.registry.AddView(viewCompose, "leave", &keys.Action{
		Key:         tcell.KeyEscape,
		Description: "Esc:leave compose", Visible: true,
		Handler: func() {
			a.composer.Flush()
			a.setFocus(viewUsers)
		},
	})
	a.registry.AddView(viewUsers, "compose", &keys.Action{
		Key: tcell.KeyRune, Rune: 'c',
		Description: "c:compose", Visible: true,
		Handler: func() { a.setFocus(viewCompose) },
	})
	a.registry.AddView(viewMessages, "compose", &keys.Action{
		Key: tcell.KeyRune, Rune: 'c',
		Description: "c:compose", Visible: true,
		Handler: func() { a.setFocus(viewCompose) },
	})
}

func (a *App) setupCallbacks() {
	a.composer.SetOnChange(func(req *api.UpdateRequest) {
		a.do(func(ctx context.Context) error { return a.vm.Update(ctx, req) })
	})
	a.composer.SetOnSend(a.send)

	a.users.SetSelectedFunc(func(_, _ int) {
		email := a.users.Selected()
		if email == "" {
			return
		}
		a.do(func(ctx context.Context) error {
			if err := a.vm.StartPrivate(ctx, email); err != nil {
				return err
			}
			a.app.QueueUpdateDraw(func() { a.setFocus(viewCompose) })
			return nil
		})
	})

	a.prompt.SetOnSubmit(func(text string) {
		a.hidePrompt()
		a.run(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 16, 0, false)

	a.right = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.messages, 0, 2, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.banners, 0, 0, false).
		AddItem(a.composer, 8, 0, true)

	body := tview.NewFlex().
		AddItem(a.users, 32, 0, false).
		AddItem(a.right, 0, 1, true)

	a.main = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.AddPage(pageMain, a.main, true, true)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.app.SetRoot(a.pages, true)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if a.prompting {
			return ev
		}
		if page, _ := a.pages.GetFrontPage(); page == pageHelp {
			if ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
				a.pages.SwitchToPage(pageMain)
				a.setFocus(a.focus)
				return nil
			}
			return ev
		}
		// Printable keys belong to the compose box while it has focus.
		if a.focus == viewCompose && ev.Key() == tcell.KeyRune {
			return ev
		}
		if a.registry.HandleEvent(a.focus, ev) {
			return nil
		}
		return ev
	})
}

func (a *App) setFocus(view string) {
	a.focus = view
	switch view {
	case viewCompose:
		a.app.SetFocus(a.composer.Content())
	case viewUsers:
		a.app.SetFocus(a.users)
	case viewMessages:
		a.app.SetFocus(a.messages)
	}
	a.menu.Update(a.registry.Hints(view))
}

func (a *App) cycleFocus() {
	next := map[string]string{viewCompose: viewUsers, viewUsers: viewMessages, viewMessages: viewCompose}
	if a.focus == viewCompose {
		a.composer.Flush()
	}
	a.setFocus(next[a.focus])
}

func (a *App) showPrompt() {
	a.prompting = true
	a.main.AddItem(a.prompt, 3, 0, true)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.prompting = false
	a.main.RemoveItem(a.prompt)
	a.setFocus(a.focus)
}

func (a *App) showHelp() {
	a.pages.SwitchToPage(pageHelp)
	a.app.SetFocus(a.help)
}

// do runs fn off the UI goroutine and flashes its error.
func (a *App) do(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.flash.Err(err)
		}
	}()
}

// send pushes pending edits, then sends the draft.
func (a *App) send(pending *api.UpdateRequest) {
	a.do(func(ctx context.Context) error {
		if pending != nil {
			if err := a.vm.Update(ctx, pending); err != nil {
				return err
			}
		}
		resp, err := a.vm.Send(ctx)
		if err != nil {
			return err
		}
		a.reportSend(resp)
		return nil
	})
}

func (a *App) reportSend(resp *api.SendResponse) {
	switch {
	case resp.Blocked:
		a.flash.Warn("not sent, see the banner above the compose box")
	case resp.Sent:
		a.flash.Info(fmt.Sprintf("sent (id %d)", resp.ServerID))
	case resp.Echoed:
		a.flash.Info("sending " + resp.LocalID)
	}
}

func (a *App) run(cmd Command) {
	switch cmd.Name {
	case "":
	case "stream", "s":
		stream, topic := ParseTarget(cmd.Args)
		a.do(func(ctx context.Context) error { return a.vm.StartStream(ctx, stream, topic) })
		a.setFocus(viewCompose)
	case "topic":
		topic := cmd.Args
		a.do(func(ctx context.Context) error { return a.vm.Update(ctx, &api.UpdateRequest{Topic: &topic}) })
	case "pm":
		a.do(func(ctx context.Context) error { return a.vm.StartPrivate(ctx, cmd.Args) })
		a.setFocus(viewCompose)
	case "send":
		a.composer.Submit()
	case "confirm":
		a.do(func(ctx context.Context) error {
			resp, err := a.vm.Confirm(ctx)
			if err != nil {
				return err
			}
			a.reportSend(resp)
			return nil
		})
	case "subscribe":
		a.do(a.vm.Subscribe)
	case "cancel":
		a.do(a.vm.Cancel)
	case "upload":
		path := cmd.Args
		a.do(func(ctx context.Context) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := a.vm.Upload(ctx, filepath.Base(path), data); err != nil {
				return err
			}
			a.flash.Info("uploading " + filepath.Base(path))
			return nil
		})
	case "unsent":
		switch cmd.Args {
		case "send":
			a.do(func(ctx context.Context) error {
				resp, err := a.vm.ConfirmUnsent(ctx)
				if err != nil {
					return err
				}
				a.reportSend(resp)
				return nil
			})
		case "discard":
			a.do(a.vm.CancelUnsent)
		default:
			a.flash.Warn("usage: :unsent send|discard")
		}
	case "resend":
		id := cmd.Args
		a.do(func(ctx context.Context) error {
			resp, err := a.vm.Resend(ctx, id)
			if err != nil {
				return err
			}
			a.reportSend(resp)
			return nil
		})
	case "help", "h":
		a.showHelp()
	case "quit", "q":
		a.Stop()
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
}

func (a *App) draw() {
	a.info.Update(a.vm.GetStatus())
	a.statusBar.SetStatus(a.vm.GetStatus())
	a.users.Update(a.vm.GetPresence())
	a.messages.Update(a.vm.GetMessages())

	v := a.vm.GetCompose()
	a.composer.Update(v)
	a.banners.Update(v)
	a.crumbs.Update(trail(v))
	a.right.ResizeItem(a.banners, a.banners.Lines(), 0)
}

// trail is the crumb path of the open draft.
func trail(v *api.ComposeView) []string {
	if v == nil || !v.Open {
		return nil
	}
	if v.State.Type == "private" {
		return []string{"PM", v.State.PrivateRecipient}
	}
	return []string{"#" + v.State.StreamName, v.State.Topic}
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		if err := a.vm.LoadAll(ctx); err != nil {
			a.flash.Err(err)
		}
		cancel()
		a.app.QueueUpdateDraw(a.draw)
	}()
	go a.watch()
	go a.refreshLoop()

	a.app.QueueUpdateDraw(func() { a.setFocus(viewCompose) })
	return a.app.Run()
}

// watch follows daemon events, reconnecting after a pause when the
// stream drops.
func (a *App) watch() {
	for a.ctx.Err() == nil {
		err := a.vm.Watch(a.ctx, a.flash.Err)
		if a.ctx.Err() != nil {
			return
		}
		if err != nil {
			a.flash.Err(err)
		}
		select {
		case <-time.After(2 * time.Second):
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) refreshLoop() {
	clock := time.NewTicker(30 * time.Second)
	defer clock.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.draw)
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		case <-clock.C:
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			_ = a.vm.LoadStatus(ctx)
			cancel()
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Current()) })
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
