// Package resourceserver is a json-server compatible development backend:
// one REST resource per collection, records stored as JSON documents.
package resourceserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sparkvibe/sparkvibe/internal/api"
	"gorm.io/gorm"
)

type Server struct {
	db  *gorm.DB
	app *fiber.App
}

func New(db *gorm.DB) *Server {
	s := &Server{
		db: db,
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			BodyLimit:             4 * 1024 * 1024,
		}),
	}

	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	s.app.Use(requestid.New())
	s.app.Use(requestLogger())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	resources := s.app.Group("/:collection", s.requireCollection)
	resources.Get("/", s.list)
	resources.Post("/", s.create)
	resources.Get("/:id", s.get)
	resources.Put("/:id", s.replace)
	resources.Patch("/:id", s.update)
	resources.Delete("/:id", s.remove)

	return s
}

// App exposes the fiber application, e.g. for app.Test in handler tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Serve(ln net.Listener) error { return s.app.Listener(ln) }

func (s *Server) Shutdown() error { return s.app.ShutdownWithTimeout(5 * time.Second) }

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func (s *Server) requireCollection(c *fiber.Ctx) error {
	if !slices.Contains(api.Collections, c.Params("collection")) {
		return jsonError(c, fiber.StatusNotFound, "unknown collection")
	}
	return c.Next()
}

func (s *Server) list(c *fiber.Ctx) error {
	var docs []Document
	if err := s.db.Where("collection = ?", c.Params("collection")).Order("created_at, id").Find(&docs).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed listing records")
	}

	filters := map[string]string{}
	limit := -1
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		switch {
		case key == "_limit":
			if n, err := strconv.Atoi(string(v)); err == nil && n >= 0 {
				limit = n
			}
		case strings.HasPrefix(key, "_"):
		default:
			filters[key] = string(v)
		}
	})

	out := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		if limit >= 0 && len(out) >= limit {
			break
		}
		body, err := decodeBody(d)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "corrupt record "+d.ID)
		}
		if matches(body, filters) {
			out = append(out, body)
		}
	}
	return c.JSON(out)
}

func (s *Server) get(c *fiber.Ctx) error {
	doc, err := s.find(c.Params("collection"), c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "not found")
	}
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed loading record")
	}
	body, err := decodeBody(*doc)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "corrupt record")
	}
	return c.JSON(body)
}

func (s *Server) create(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body == nil {
		return jsonError(c, fiber.StatusBadRequest, "request body must be a JSON object")
	}

	id := idString(body["id"])
	if id == "" {
		generated, err := gonanoid.New()
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "failed generating id")
		}
		id = generated
	}
	body["id"] = id

	collection := c.Params("collection")
	if _, err := s.find(collection, id); err == nil {
		return jsonError(c, fiber.StatusConflict, "duplicate id "+id)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid record")
	}
	doc := Document{Collection: collection, ID: id, Body: string(data)}
	if err := s.db.Create(&doc).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed creating record")
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

func (s *Server) update(c *fiber.Ctx) error {
	return s.write(c, true)
}

func (s *Server) replace(c *fiber.Ctx) error {
	return s.write(c, false)
}

// write applies a PATCH (merge) or PUT (replace) to an existing record.
func (s *Server) write(c *fiber.Ctx, merge bool) error {
	var patch map[string]interface{}
	if err := json.Unmarshal(c.Body(), &patch); err != nil || patch == nil {
		return jsonError(c, fiber.StatusBadRequest, "request body must be a JSON object")
	}

	doc, err := s.find(c.Params("collection"), c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "not found")
	}
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed loading record")
	}

	body := map[string]interface{}{}
	if merge {
		if body, err = decodeBody(*doc); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "corrupt record")
		}
	}
	for k, v := range patch {
		body[k] = v
	}
	body["id"] = doc.ID

	data, err := json.Marshal(body)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid record")
	}
	if err := s.db.Model(doc).Where("collection = ? AND id = ?", doc.Collection, doc.ID).Update("body", string(data)).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed updating record")
	}
	return c.JSON(body)
}

func (s *Server) remove(c *fiber.Ctx) error {
	result := s.db.Where("collection = ? AND id = ?", c.Params("collection"), c.Params("id")).Delete(&Document{})
	if result.Error != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed deleting record")
	}
	if result.RowsAffected == 0 {
		return jsonError(c, fiber.StatusNotFound, "not found")
	}
	return c.JSON(fiber.Map{})
}

func (s *Server) find(collection, id string) (*Document, error) {
	var doc Document
	if err := s.db.Where("collection = ? AND id = ?", collection, id).Take(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func decodeBody(d Document) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(d.Body), &body); err != nil {
		return nil, err
	}
	return body, nil
}

// idString accepts string or numeric ids, as json-server does.
func idString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

func matches(body map[string]interface{}, filters map[string]string) bool {
	for key, want := range filters {
		v, ok := body[key]
		if !ok || v == nil || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}
