package app

// Command はCLIのサブコマンドを表す。
type Command string

const (
	// CommandLogin はメールアドレスとパスワードでログインする。
	CommandLogin Command = "login"
	// CommandRegister は新規ユーザーを登録する。
	CommandRegister Command = "register"
	// CommandLogout は保存済みトークンを破棄する。
	CommandLogout Command = "logout"
	// CommandWhoami は現在のセッションのユーザーを表示する。
	CommandWhoami Command = "whoami"
	// CommandOAuth は外部プロバイダでログインする。
	CommandOAuth Command = "oauth"
	// CommandFeed は投稿フィードを表示する。
	CommandFeed Command = "feed"
	// CommandPost は投稿の表示・作成・削除・いいね・コメントを行う。
	CommandPost Command = "post"
	// CommandProfile はユーザープロフィールを表示する。
	CommandProfile Command = "profile"
	// CommandFollow はユーザーをフォローする。
	CommandFollow Command = "follow"
	// CommandUnfollow はユーザーのフォローを解除する。
	CommandUnfollow Command = "unfollow"
	// CommandNotifications は通知の一覧・既読化・監視を行う。
	CommandNotifications Command = "notifications"
	// CommandPlan は学習プランの一覧・表示・作成・完了を行う。
	CommandPlan Command = "plan"
	// CommandSearch は横断検索を行う。
	CommandSearch Command = "search"
	// CommandAnalytics は学習統計を表示する。
	CommandAnalytics Command = "analytics"
	// CommandActivity はユーザーのアクティビティを表示する。
	CommandActivity Command = "activity"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空またはサポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandHelp, nil
	}

	switch args[0] {
	case "login":
		return CommandLogin, args[1:]
	case "register":
		return CommandRegister, args[1:]
	case "logout":
		return CommandLogout, args[1:]
	case "whoami":
		return CommandWhoami, args[1:]
	case "oauth":
		return CommandOAuth, args[1:]
	case "feed":
		return CommandFeed, args[1:]
	case "post":
		return CommandPost, args[1:]
	case "profile":
		return CommandProfile, args[1:]
	case "follow":
		return CommandFollow, args[1:]
	case "unfollow":
		return CommandUnfollow, args[1:]
	case "notifications":
		return CommandNotifications, args[1:]
	case "plan":
		return CommandPlan, args[1:]
	case "search":
		return CommandSearch, args[1:]
	case "analytics":
		return CommandAnalytics, args[1:]
	case "activity":
		return CommandActivity, args[1:]
	default:
		return CommandHelp, nil
	}
}
