package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"gorm.io/gorm"

	"wafer-be/config"
	"wafer-be/handlers"
	"wafer-be/markdown"
	"wafer-be/migrations"
	"wafer-be/models"
	"wafer-be/notify"
	"wafer-be/routes"
	"wafer-be/templates"
	"wafer-be/utils"
)

func main() {
	migrateStatus := flag.Bool("migrate-status", false, "list migrations with their applied state and exit")
	migrateDown := flag.String("migrate-down", "", "revert the migration app.name and its dependents, then exit")
	flag.Parse()

	// Load environment variables
	config.LoadEnv()

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatal("Failed to load settings: ", err)
	}

	// Connect to database
	config.ConnectDB()
	db := config.GetDB()

	graph, err := migrations.NewSchemaGraph()
	if err != nil {
		log.Fatal("Invalid migration graph: ", err)
	}
	runner := migrations.NewRunner(db, graph)
	ctx := context.Background()

	switch {
	case *migrateStatus:
		printMigrationStatus(ctx, runner)
		return
	case *migrateDown != "":
		key, err := migrations.ParseKey(*migrateDown)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := runner.Down(ctx, key); err != nil {
			log.Fatal("Failed to revert migrations: ", err)
		}
		return
	}

	if _, err := runner.Up(ctx); err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}

	// Connect to Redis for caching and the notification outbox
	config.ConnectRedis()

	// Create upload directories if they don't exist
	createUploadDirectories()

	// Create default admin user if not exists
	createDefaultAdmin(db, settings)

	renderer, err := newRenderer(settings)
	if err != nil {
		log.Fatal("Failed to set up markdown: ", err)
	}

	notifier, err := notify.NewNotifier(templates.NewSiteContext(settings), notify.NewOutbox(config.GetRedis()))
	if err != nil {
		log.Fatal("Failed to load notification templates: ", err)
	}

	h := handlers.New(db, utils.NewCache(config.GetRedis()), settings, renderer, notifier)

	// Setup routes
	router := routes.SetupRoutes(h)

	// Start server
	addr := fmt.Sprintf(":%s", settings.Port)

	log.Printf("%s backend starting on http://localhost%s", settings.ConferenceName, addr)
	log.Fatal(http.ListenAndServe(addr, router))
}

func newRenderer(settings config.Settings) (*markdown.Renderer, error) {
	allow := markdown.DefaultAllowList()
	if settings.MarkdownAllowList != "" {
		loaded, err := markdown.LoadAllowList(settings.MarkdownAllowList)
		if err != nil {
			return nil, err
		}
		allow = loaded
	}

	renderer, err := markdown.NewRenderer(allow, markdown.Options{
		Extensions: settings.MarkdownExtensions,
		HardWraps:  settings.MarkdownHardWraps,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Markdown allow-list version %s (%d tags)", allow.Version, len(allow.Tags))
	return renderer, nil
}

func printMigrationStatus(ctx context.Context, runner *migrations.Runner) {
	statuses, err := runner.Status(ctx)
	if err != nil {
		log.Fatal("Failed to read migration status: ", err)
	}
	for _, s := range statuses {
		mark := "[ ]"
		if s.Applied {
			mark = "[X]"
		}
		fmt.Fprintf(os.Stdout, "%s %s\n", mark, s.Key)
	}
}

func createUploadDirectories() {
	directories := []string{
		utils.UploadDir,
		utils.UploadDir + "/sponsors",
		utils.UploadDir + "/pages",
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Warning: Failed to create directory %s: %v", dir, err)
		}
	}
}

func createDefaultAdmin(db *gorm.DB, settings config.Settings) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)

	if count == 0 {
		hashedPassword, err := utils.HashPassword(settings.AdminPassword)
		if err != nil {
			log.Println("Failed to create default admin:", err)
			return
		}

		admin := models.User{
			Username: "admin",
			Name:     "Admin",
			Email:    "admin@localhost",
			Password: hashedPassword,
			Role:     models.RoleAdmin,
		}

		if err := db.Create(&admin).Error; err != nil {
			log.Println("Failed to create default admin:", err)
			return
		}

		log.Println("Default admin created - Username: admin (password from ADMIN_PASSWORD)")
	}
}
