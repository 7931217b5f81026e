package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"content-pulse/config"
	"content-pulse/storage"
)

// BackupConfig ist das Ziel für Datenbank-Backups.
type BackupConfig struct {
	Bucket    string `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	Endpoint  string `envconfig:"BACKUP_S3_ENDPOINT" required:"true"`
	AccessKey string `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	SecretKey string `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	Region    string `envconfig:"BACKUP_S3_REGION" required:"true"`
	Keep      int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Dump the PostgreSQL database, upload it to S3 and rotate old backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()
		return runBackup(cmd.Context(), logger)
	},
}

func runBackup(ctx context.Context, logger *zap.Logger) error {
	logger.Info("Starte Backup-Prozess...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("Fehler beim Laden der Konfiguration: %w", err)
	}
	if cfg.DBDriver != "postgres" {
		return fmt.Errorf("backup needs DB_DRIVER=postgres, got %q", cfg.DBDriver)
	}
	var bc BackupConfig
	if err := envconfig.Process("", &bc); err != nil {
		return fmt.Errorf("Fehler beim Laden der Backup-Konfiguration: %w", err)
	}

	// 1. Datenbank-Dump erstellen
	dump, err := gzipOutput(dumpCommand(ctx, cfg))
	if err != nil {
		return fmt.Errorf("Fehler beim Erstellen des DB-Dumps: %w", err)
	}

	// 2. S3-Client erstellen
	client, err := storage.NewS3Client(ctx, storage.S3Target{
		URL:    bc.Endpoint,
		Region: bc.Region,
		Key:    bc.AccessKey,
		Secret: bc.SecretKey,
		Bucket: bc.Bucket,
	})
	if err != nil {
		return fmt.Errorf("Fehler beim Erstellen des S3-Clients: %w", err)
	}
	store := &storage.ObjectStore{Client: client, BaseURL: bc.Endpoint, Bucket: bc.Bucket, Prefix: "backups/", Keep: bc.Keep, Logger: logger}

	// 3. Backup hochladen
	name := fmt.Sprintf("backup-%s.sql.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := store.Put(ctx, name, dump)
	if err != nil {
		return fmt.Errorf("Fehler beim Hochladen nach S3: %w", err)
	}
	logger.Info("Backup hochgeladen", zap.String("url", link), zap.Int("bytes", len(dump)))

	// 4. Alte Backups rotieren
	if err := store.Rotate(ctx); err != nil {
		return fmt.Errorf("Fehler bei der Rotation alter Backups: %w", err)
	}
	logger.Info("Backup-Prozess erfolgreich abgeschlossen.")
	return nil
}

func dumpCommand(ctx context.Context, cfg *config.Config) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", fmt.Sprint(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)
	return cmd
}

// gzipOutput führt cmd aus und liefert seine Standardausgabe gzip-komprimiert.
func gzipOutput(cmd *exec.Cmd) ([]byte, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.Copy(zw, stdout); err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
