package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/compose"
	"github.com/matheus3301/zpp/internal/session"
	"github.com/stretchr/testify/require"
)

func TestReportSend(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, reportSend(&out, &api.SendResponse{Sent: true, ServerID: 42}))
	require.Equal(t, "sent: id 42\n", out.String())

	out.Reset()
	require.NoError(t, reportSend(&out, &api.SendResponse{Echoed: true, LocalID: "0.01"}))
	require.Contains(t, out.String(), "0.01")

	require.EqualError(t, reportSend(&out, &api.SendResponse{Error: "Invalid API key"}), "Invalid API key")

	blocked := &api.SendResponse{Blocked: true, View: &api.ComposeView{Banners: api.Banners{
		Wildcard: []compose.Warning{{StreamName: "general", SubscriberCount: 50}},
	}}}
	err := reportSend(&out, blocked)
	require.Error(t, err)
	require.Contains(t, err.Error(), "#general")
	require.Contains(t, err.Error(), "compose confirm")
}

func TestFormatMessage(t *testing.T) {
	got := formatMessage(api.Message{LocalID: "0.02", Status: "failed", Type: "stream", Stream: "general", Topic: "lunch", Content: "hi\nthere", Error: "boom"})
	require.Equal(t, "0.02     failed  #general > lunch: hi ... (boom)", got)

	got = formatMessage(api.Message{LocalID: "loc-3", Status: "sent", Type: "private", Recipient: "a@example.com", Content: "yo"})
	require.True(t, strings.HasPrefix(got, "loc-3"))
	require.Contains(t, got, "pm:a@example.com: yo")
}

func TestSendRequiresTarget(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"send", "hello"})
	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "stream")

	root = newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"send", "--stream", "general", "--to", "a@example.com", "hello"})
	require.Error(t, root.Execute())
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	for _, path := range [][]string{
		{"status"}, {"send"}, {"compose", "confirm"}, {"compose", "cancel"}, {"compose", "preview"},
		{"presence"}, {"messages"}, {"resend"}, {"unsent", "send"}, {"unsent", "discard"}, {"watch"}, {"sessions"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestPrintPreview(t *testing.T) {
	var out bytes.Buffer
	printPreview(&out, &api.PreviewResponse{Rendered: "<p>hi</p>\n", LocalEcho: true})
	require.Equal(t, "<p>hi</p>\n", out.String())

	out.Reset()
	printPreview(&out, &api.PreviewResponse{Rendered: "<p>/poll</p>"})
	require.Contains(t, out.String(), "not echoed locally")
}

func TestSessionsListsDirectories(t *testing.T) {
	t.Setenv("ZPP_HOME", t.TempDir())
	require.NoError(t, session.EnsureDir("work"))

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"sessions"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "work")
	require.Contains(t, out.String(), "(stopped)")
}
