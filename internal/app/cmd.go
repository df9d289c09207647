package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は定期再構築ワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandGenerate はデータセットを1回再構築し、CSVに書き出すことを示す。
	CommandGenerate Command = "generate"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandCheck はデータセットの整合性を検証することを示す。
	CommandCheck Command = "check"
	// CommandExport はストアの内容をCSVに書き出すことを示す。
	CommandExport Command = "export"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "generate":
		return CommandGenerate
	case "migrate":
		return CommandMigrate
	case "check":
		return CommandCheck
	case "export":
		return CommandExport
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// commandArg はサブコマンドに続く最初の引数を返す。なければ空文字。
func commandArg(args []string) string {
	if len(args) < 2 {
		return ""
	}
	return args[1]
}
