package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docstore/internal/model"
	"docstore/internal/service"
	"docstore/internal/storage"
)

// documentResponse is the body of GET /documents/*.
type documentResponse struct {
	*model.DocumentFile
	URL string `json:"url,omitempty"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Document key names are taken from the wildcard and may contain "/".
func RegisterRoutes(app *fiber.App, pinger storage.Pinger, gatherer prometheus.Gatherer, store service.DocumentStore) {
	app.Get("/health", HealthCheck(pinger))
	app.Get("/healthz", LivenessProbe())
	app.Get("/metrics", Metrics(gatherer))

	app.Post("/documents/*", UploadDocument(store))
	app.Get("/documents/*", FindDocument(store))
	app.Delete("/documents/*", DeleteDocument(store))
	app.Get("/content/*", DownloadContent(store))
}

// HealthCheck reports whether the storage backend answers.
func HealthCheck(pinger storage.Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pinger == nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Metrics exposes the Prometheus registry.
func Metrics(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// UploadDocument stores the multipart field "file" under the key taken from the path.
func UploadDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params("*")
		if key == "" {
			return writeError(c, fiber.StatusBadRequest, "KEY_REQUIRED", "key name is required")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := store.Create(c.UserContext(), f, key, fh.Size)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// FindDocument returns the metadata of the document stored under the key.
func FindDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params("*")
		if key == "" {
			return writeError(c, fiber.StatusBadRequest, "KEY_REQUIRED", "key name is required")
		}

		doc, err := store.Find(c.UserContext(), key)
		if err != nil {
			return writeStoreError(c, err)
		}
		if doc == nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
		}

		u, err := store.URL(key)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(documentResponse{DocumentFile: doc, URL: u})
	}
}

// DeleteDocument removes the document. Missing documents still answer 204.
func DeleteDocument(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params("*")
		if key == "" {
			return writeError(c, fiber.StatusBadRequest, "KEY_REQUIRED", "key name is required")
		}
		if err := store.Delete(c.UserContext(), key); err != nil {
			return writeStoreError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadContent sends the raw document bytes.
func DownloadContent(store service.DocumentStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params("*")
		if key == "" {
			return writeError(c, fiber.StatusBadRequest, "KEY_REQUIRED", "key name is required")
		}

		data, err := store.Fetch(c.UserContext(), key)
		if err != nil {
			return writeStoreError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		return c.Status(fiber.StatusOK).Send(data)
	}
}
