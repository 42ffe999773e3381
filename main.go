package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/events"
	"github.com/jghoshh/ascent/lib/calendar"
	"github.com/jghoshh/ascent/storage"
	"github.com/jghoshh/ascent/storage/cache"
	"github.com/jghoshh/ascent/tracker"
)

func main() {
	// Load the .env file
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables. REDIS_URL and RABBITMQ_URL are
	// optional; leaving them unset disables the fallback task cache and the
	// invalidation events.
	dbURI := os.Getenv("MONGODB_URI")
	dbName := os.Getenv("DB_NAME")
	redisURL := os.Getenv("REDIS_URL")
	rabbitMQURL := os.Getenv("RABBITMQ_URL")
	userIDHex := os.Getenv("ASCENT_USER_ID")

	ctx := context.Background()

	userID, err := primitive.ObjectIDFromHex(userIDHex)
	if err != nil {
		log.Fatal("ASCENT_USER_ID must be a valid object id: ", err)
	}

	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatal("error initializing storage: ", err)
	}
	defer store.Disconnect()

	var taskCache cache.TaskCacheInterface
	if redisURL != "" {
		taskCache, err = cache.NewTaskCache(redisURL)
		if err != nil {
			log.Fatal("error initializing task cache: ", err)
		}
		defer taskCache.Disconnect()
	}

	var publisher events.Publisher
	if rabbitMQURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(rabbitMQURL, "ascent.invalidations")
		if err != nil {
			log.Fatal("error initializing event publisher: ", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	t := tracker.New(store, taskCache, publisher, userID)

	summary, err := t.TaskSummary(ctx)
	if err != nil {
		log.Fatal("error loading task summary: ", err)
	}

	fmt.Printf("%s: %d%% of %d active tasks complete\n", summary.Date, summary.CompletionPercent, summary.TotalActiveTasks)
	if summary.NextIncompleteTask != nil {
		fmt.Printf("next up: %s\n", summary.NextIncompleteTask.Title)
	}

	tree, err := t.LoadTree(ctx)
	if err != nil {
		log.Fatal("error loading goal tree: ", err)
	}

	for _, goal := range tree {
		fmt.Printf("%3d%%  %s\n", goal.CompletionPercent, goal.Title)
		for _, medium := range goal.MediumGoals {
			fmt.Printf("  %3d%%  %s\n", medium.CompletionPercent, medium.Title)
		}
	}

	now := time.Now().UTC()
	days, err := t.LoadMonthCalendar(ctx, now.Year(), now.Month())
	if err != nil {
		log.Fatal("error loading month calendar: ", err)
	}

	allDays := 0
	for _, day := range days {
		if day.Status == calendar.StatusAll {
			allDays++
		}
	}
	fmt.Printf("%d fully-complete day(s) so far this month\n", allDays)
}
