package telegram

import (
	"testing"

	"github.com/m3rciful/catchbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	noop := func(tele.Context) error { return nil }
	reg.RegisterCommand("/users", commands.Command{Handler: noop, Description: "users", Aliases: []string{"👥 Пользователи"}})

	cases := []struct {
		in   string
		want bool
	}{
		{"/users", true},
		{"👥 Пользователи", true},
		{" 👥 Пользователи ", true},
		{"users", false},
		{"/👥 Пользователи", false},
		{"", false},
	}
	for _, tc := range cases {
		key, _, ok := reg.LookupCommand(tc.in)
		if ok != tc.want {
			t.Fatalf("LookupCommand(%q) ok = %v, want %v", tc.in, ok, tc.want)
		}
		if ok && key != "/users" {
			t.Fatalf("LookupCommand(%q) key = %q", tc.in, key)
		}
	}
}

func TestRegisterCommandRejectsBareNames(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("users", commands.Command{Handler: func(tele.Context) error { return nil }, Description: "x"})
	if len(reg.Commands()) != 0 {
		t.Fatal("command without slash registered")
	}
}
