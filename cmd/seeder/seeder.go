// Команда seeder загружает локальную директорию изображений в MinIO
// и формирует products.csv, ссылающийся на загруженные объекты.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	config "github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/internal/domain"
	"github.com/DRSN-tech/visual-matcher/internal/infrastructure"
	s3Repo "github.com/DRSN-tech/visual-matcher/internal/repository/minio"
	"github.com/DRSN-tech/visual-matcher/pkg/clients"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/google/uuid"
)

func main() {
	var (
		imagesDir = flag.String("dir", "", "директория с изображениями")
		csvPath   = flag.String("csv", "data/products.csv", "путь результирующего CSV")
	)
	flag.Parse()

	log := logger.NewSlogLogger()

	if *imagesDir == "" {
		log.Errorf(fmt.Errorf("-dir is required"), "missing images directory")
		os.Exit(1)
	}

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}
	if cfg.Minio == nil {
		log.Errorf(fmt.Errorf("MINIO_ENDPOINT is required"), "minio is not configured")
		os.Exit(1)
	}

	if err := run(cfg, log, *imagesDir, *csvPath); err != nil {
		log.Errorf(err, "seeding failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger, imagesDir string, csvPath string) error {
	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = clients.EnsureBucket(ctx, minioClient, cfg.Minio.BucketName)
	cancel()
	if err != nil {
		return err
	}

	repo := s3Repo.NewImageRepo(minioClient, cfg.Minio)

	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return err
	}

	records := [][]string{{"id", "name", "image_url"}}
	uploaded, skipped := 0, 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		contentType, err := infrastructure.GetMIMEFromExtension(filepath.Ext(name))
		if err != nil {
			skipped++
			log.Warnf("skipped %s: %v", name, err)
			continue
		}

		data, err := os.ReadFile(filepath.Join(imagesDir, name))
		if err != nil {
			skipped++
			log.Warnf("skipped %s: %v", name, err)
			continue
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		objKey := fmt.Sprintf("%s-%s%s", stem, uuid.NewString(), filepath.Ext(name))

		uploadCtx, uploadCancel := context.WithTimeout(context.Background(), 30*time.Second)
		key, err := repo.Upload(uploadCtx, domain.NewStoredObject(cfg.Minio.BucketName, objKey, data, contentType))
		uploadCancel()
		if err != nil {
			skipped++
			log.Warnf("upload %s failed: %v", name, err)
			continue
		}

		records = append(records, []string{
			stem,
			strings.ReplaceAll(stem, "_", " "),
			fmt.Sprintf("minio://%s/%s", cfg.Minio.BucketName, key),
		})
		uploaded++
	}

	if err := writeCSV(csvPath, records); err != nil {
		return err
	}

	log.Infof("seeding finished: uploaded=%d skipped=%d csv=%s", uploaded, skipped, csvPath)
	return nil
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()

	return w.Error()
}
