package app

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     Command
		wantRest []string
	}{
		{name: "引数なし", args: nil, want: CommandHelp, wantRest: nil},
		{name: "login", args: []string{"login", "a@b.c", "pw"}, want: CommandLogin, wantRest: []string{"a@b.c", "pw"}},
		{name: "register", args: []string{"register"}, want: CommandRegister, wantRest: []string{}},
		{name: "logout", args: []string{"logout"}, want: CommandLogout, wantRest: []string{}},
		{name: "whoami", args: []string{"whoami"}, want: CommandWhoami, wantRest: []string{}},
		{name: "oauth", args: []string{"oauth", "google"}, want: CommandOAuth, wantRest: []string{"google"}},
		{name: "feed", args: []string{"feed"}, want: CommandFeed, wantRest: []string{}},
		{name: "post", args: []string{"post", "show", "1"}, want: CommandPost, wantRest: []string{"show", "1"}},
		{name: "profile", args: []string{"profile", "42"}, want: CommandProfile, wantRest: []string{"42"}},
		{name: "follow", args: []string{"follow", "42"}, want: CommandFollow, wantRest: []string{"42"}},
		{name: "unfollow", args: []string{"unfollow", "42"}, want: CommandUnfollow, wantRest: []string{"42"}},
		{name: "notifications", args: []string{"notifications", "--unread"}, want: CommandNotifications, wantRest: []string{"--unread"}},
		{name: "plan", args: []string{"plan", "list"}, want: CommandPlan, wantRest: []string{"list"}},
		{name: "search", args: []string{"search", "go"}, want: CommandSearch, wantRest: []string{"go"}},
		{name: "analytics", args: []string{"analytics"}, want: CommandAnalytics, wantRest: []string{}},
		{name: "activity", args: []string{"activity", "42"}, want: CommandActivity, wantRest: []string{"42"}},
		{name: "サポート外", args: []string{"bogus"}, want: CommandHelp, wantRest: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest := ParseCommand(tt.args)
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %v, want %v", tt.args, got, tt.want)
			}
			if len(rest) != len(tt.wantRest) || (len(rest) > 0 && !reflect.DeepEqual(rest, tt.wantRest)) {
				t.Errorf("残り引数 = %v, want %v", rest, tt.wantRest)
			}
		})
	}
}
