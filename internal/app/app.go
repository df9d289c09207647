package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/carefunnel/internal/analytics"
	"github.com/hitoshi/carefunnel/internal/config"
	"github.com/hitoshi/carefunnel/internal/csvio"
	"github.com/hitoshi/carefunnel/internal/database"
	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/hitoshi/carefunnel/internal/handler"
	"github.com/hitoshi/carefunnel/internal/logger"
	"github.com/hitoshi/carefunnel/internal/metrics"
	"github.com/hitoshi/carefunnel/internal/middleware"
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/hitoshi/carefunnel/internal/repository"
	"github.com/hitoshi/carefunnel/internal/store"
	"github.com/hitoshi/carefunnel/internal/worker/regenerate"
	"github.com/prometheus/client_golang/prometheus"
)

// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Int("user_count", cfg.UserCount),
		slog.Uint64("seed", cfg.RandomSeed),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandGenerate:
		return runGenerate(cfg, commandArg(args))
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCheck:
		return runCheck(cfg, commandArg(args))
	case CommandExport:
		return runExport(cfg, commandArg(args))
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリとメトリクスの初期化
	repo := repository.NewPostgresDatasetRepo(db)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 3. 読み込みキャッシュの初期化（ストアの再構築を検知すると破棄される）
	cache := store.NewCache(repo, slog.Default(), collector)

	// 4. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral)),
		HealthChecker:     repo,
		Data:              cache,
		Engine:            analytics.NewEngine(),
		Metrics:           collector,
		Gatherer:          reg,
	}
	defer deps.RateLimiter.Stop()

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 起動直後に1回、以降はREGENERATE_SCHEDULEに従ってデータセットを再構築する。
// APIサーバーは生成実行IDの変化で再構築を検知するため、ここではキャッシュを持たない。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if err := regenerate.ValidateSchedule(cfg.RegenerateSchedule); err != nil {
		return err
	}

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. ジョブの初期化
	repo := repository.NewPostgresDatasetRepo(db)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	job := regenerate.NewJob(cfg.GeneratorConfig(), repo, nil, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.String("schedule", cfg.RegenerateSchedule),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	if err := regenerate.NewScheduler(job, cfg.RegenerateSchedule, slog.Default()).Start(ctx); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runGenerate はデータセットを1回再構築してストアを入れ替え、CSVとして書き出す。
// dirが空の場合はEXPORT_DIRに書き出す。
func runGenerate(cfg *config.Config, dir string) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewPostgresDatasetRepo(db)
	job := regenerate.NewJob(cfg.GeneratorConfig(), repo, nil, nil, slog.Default())

	ds, err := job.Rebuild(context.Background())
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	return exportDataset(ds, exportDir(cfg, dir))
}

// runCheck はデータセットの整合性を検証し、テーブルごとの行数をログに出す。
// dirが指定された場合はストアではなくそのディレクトリのCSVを検証する。
func runCheck(cfg *config.Config, dir string) error {
	if dir != "" {
		ds, err := csvio.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read csv: %w", err)
		}
		return checkDataset(ds, nil)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	repo := repository.NewPostgresDatasetRepo(db)

	runs, err := repo.ListRuns(ctx, 1)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return model.NewNoDatasetError()
	}

	ds, err := loadSnapshot(ctx, repo)
	if err != nil {
		return err
	}
	return checkDataset(ds, runs[0].RowCounts)
}

// runExport はストアの現在のデータセットをCSVとして書き出す。
// dirが空の場合はEXPORT_DIRに書き出す。
func runExport(cfg *config.Config, dir string) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ds, err := loadSnapshot(context.Background(), repository.NewPostgresDatasetRepo(db))
	if err != nil {
		return err
	}
	return exportDataset(ds, exportDir(cfg, dir))
}

// loadSnapshot はsrcから6テーブルすべてを読み込む。
func loadSnapshot(ctx context.Context, src store.Source) (*dataset.Dataset, error) {
	cache := store.NewCache(src, slog.Default(), nil)
	if err := cache.Refresh(ctx); err != nil {
		return nil, err
	}
	return cache.Snapshot(ctx)
}

// checkDataset はdsの参照整合性を検証する。
// recordedが指定された場合は生成時に記録した行数とも突き合わせる。
func checkDataset(ds *dataset.Dataset, recorded map[string]int) error {
	counts := ds.Counts()
	attrs := make([]any, 0, len(dataset.TableNames)+1)
	if ds.Run.ID != "" {
		attrs = append(attrs, slog.String("run_id", ds.Run.ID))
	}
	for _, name := range dataset.TableNames {
		attrs = append(attrs, slog.Int(name, counts[name]))
	}
	slog.Info("dataset row counts", attrs...)

	if err := ds.Validate(); err != nil {
		return err
	}

	if recorded != nil {
		for _, name := range dataset.TableNames {
			if recorded[name] != counts[name] {
				return model.NewDataIntegrityError(
					fmt.Sprintf("テーブル %s の行数 %d が生成時の記録 %d と一致しません", name, counts[name], recorded[name]),
				)
			}
		}
	}

	slog.Info("dataset integrity check passed")
	return nil
}

// exportDataset はdsをdirにCSVとして書き出す。
func exportDataset(ds *dataset.Dataset, dir string) error {
	if err := csvio.WriteDir(dir, ds); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	slog.Info("dataset exported",
		slog.String("dir", dir),
		slog.String("run_id", ds.Run.ID),
	)
	return nil
}

func exportDir(cfg *config.Config, dir string) string {
	if dir != "" {
		return dir
	}
	return cfg.ExportDir
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
