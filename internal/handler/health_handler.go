package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BrokerPinger is satisfied by queue.RabbitMQ.
type BrokerPinger interface {
	Ping(ctx context.Context) error
}

// RegisterHealthRoutes mounts /livez and /readyz. broker may be nil for
// processes that do not hold a broker connection.
func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, broker BrokerPinger) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, broker))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, broker BrokerPinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{
			"postgres": checkStatus(sqlDB.PingContext(ctx)),
			"redis":    checkStatus(rdb.Ping(ctx).Err()),
		}
		if broker != nil {
			checks["rabbitmq"] = checkStatus(broker.Ping(ctx))
		}

		status := "ready"
		statusCode := fiber.StatusOK
		for _, v := range checks {
			if v != "ok" {
				status = "not_ready"
				statusCode = fiber.StatusServiceUnavailable
				break
			}
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

func checkStatus(err error) string {
	if err != nil {
		return "down"
	}
	return "ok"
}
