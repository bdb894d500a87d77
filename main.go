package main

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/iesreza/checkin-backend/apps/checkin"
	"github.com/iesreza/checkin-backend/apps/models"
	"github.com/iesreza/checkin-backend/apps/nats"
	"github.com/iesreza/checkin-backend/apps/redis"
	"github.com/iesreza/checkin-backend/apps/storage"
	"github.com/iesreza/checkin-backend/apps/system"
)

func main() {
	evo.Setup()

	var apps = application.GetInstance()
	apps.Register(system.App{}, models.App{}, nats.App{}, redis.App{}, storage.App{}, &checkin.App{})

	evo.Run()
}
