package main

import (
	"os"

	"github.com/DRSN-tech/visual-matcher/internal/app"
	config "github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
)

//	@title			Visual Product Matcher
//	@version		1.0.0
//	@description	Поиск визуально похожих товаров каталога по изображению

func main() {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
