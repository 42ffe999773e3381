package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jghoshh/ascent/lib/validate"
	"github.com/jghoshh/ascent/models"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the goal-tracking
// collections in the MongoDB database.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI and
// database name, and sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	// Initializing big_goals collection.
	bigGoalsCollection := m.client.Database(m.dbName).Collection("big_goals")

	// Create an index on the "user_id" field. This will speed up queries on the "user_id" field.
	userIDIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"user_id": 1, // 1 for ascending order
		},
		Options: options.Index(),
	}

	_, err = bigGoalsCollection.Indexes().CreateOne(ctx, userIDIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id index: %v", err)
	}

	// Create a compound unique index on ("user_id", "order_index").
	// Sibling order indexes must be unique per user; this is the eager
	// constraint that forces the two-phase reorder write.
	userOrderIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "order_index", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = bigGoalsCollection.Indexes().CreateOne(ctx, userOrderIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id and order_index index: %v", err)
	}

	// Initializing medium_goals collection.
	mediumGoalsCollection := m.client.Database(m.dbName).Collection("medium_goals")

	parentOrderIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "big_goal_id", Value: 1},
			{Key: "order_index", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = mediumGoalsCollection.Indexes().CreateOne(ctx, parentOrderIndexModel)
	if err != nil {
		return fmt.Errorf("error creating big_goal_id and order_index index: %v", err)
	}

	// Initializing daily_tasks collection.
	dailyTasksCollection := m.client.Database(m.dbName).Collection("daily_tasks")

	taskOrderIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "medium_goal_id", Value: 1},
			{Key: "order_index", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = dailyTasksCollection.Indexes().CreateOne(ctx, taskOrderIndexModel)
	if err != nil {
		return fmt.Errorf("error creating medium_goal_id and order_index index: %v", err)
	}

	// Initializing daily_task_checkins collection.
	checkinsCollection := m.client.Database(m.dbName).Collection("daily_task_checkins")

	// One checkin row per (task, date); upserts depend on this constraint.
	checkinIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "task_id", Value: 1},
			{Key: "checkin_date", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = checkinsCollection.Indexes().CreateOne(ctx, checkinIndexModel)
	if err != nil {
		return fmt.Errorf("error creating task_id and checkin_date index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
// Returns an error if the disconnection process fails.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

func (m *MongoStorage) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

// byOrderIndex sorts find results by ascending order index.
var byOrderIndex = options.Find().SetSort(bson.D{{Key: "order_index", Value: 1}})

// LoadGoalTree loads all of a user's big goals with their medium goals and
// daily tasks nested inside, each sibling level ordered by order index. The
// three levels are fetched with separate queries and assembled here.
func (m *MongoStorage) LoadGoalTree(ctx context.Context, userID primitive.ObjectID) ([]models.GoalTree, error) {
	bigGoals, err := m.findBigGoals(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}

	bigGoalIDs := make([]primitive.ObjectID, 0, len(bigGoals))
	for _, goal := range bigGoals {
		bigGoalIDs = append(bigGoalIDs, goal.ID)
	}

	mediumGoals, err := m.findMediumGoals(ctx, bson.M{"big_goal_id": bson.M{"$in": bigGoalIDs}})
	if err != nil {
		return nil, err
	}

	mediumGoalIDs := make([]primitive.ObjectID, 0, len(mediumGoals))
	for _, goal := range mediumGoals {
		mediumGoalIDs = append(mediumGoalIDs, goal.ID)
	}

	tasks, err := m.findDailyTasks(ctx, bson.M{"medium_goal_id": bson.M{"$in": mediumGoalIDs}})
	if err != nil {
		return nil, err
	}

	tasksByMedium := make(map[primitive.ObjectID][]models.DailyTask)
	for _, task := range tasks {
		tasksByMedium[task.MediumGoalID] = append(tasksByMedium[task.MediumGoalID], task)
	}

	nodesByBig := make(map[primitive.ObjectID][]models.MediumGoalNode)
	for _, goal := range mediumGoals {
		nodesByBig[goal.BigGoalID] = append(nodesByBig[goal.BigGoalID], models.MediumGoalNode{
			MediumGoal: goal,
			DailyTasks: tasksByMedium[goal.ID],
		})
	}

	tree := make([]models.GoalTree, 0, len(bigGoals))
	for _, goal := range bigGoals {
		tree = append(tree, models.GoalTree{
			BigGoal:     goal,
			MediumGoals: nodesByBig[goal.ID],
		})
	}
	return tree, nil
}

// LoadActiveTasks loads the user's daily tasks whose parent medium goal is
// not completed, carrying the parent big/medium order indexes so callers can
// produce a stable display order.
func (m *MongoStorage) LoadActiveTasks(ctx context.Context, userID primitive.ObjectID) ([]models.ActiveTask, error) {
	bigGoals, err := m.findBigGoals(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}

	bigOrderByID := make(map[primitive.ObjectID]int, len(bigGoals))
	bigGoalIDs := make([]primitive.ObjectID, 0, len(bigGoals))
	for _, goal := range bigGoals {
		bigOrderByID[goal.ID] = goal.OrderIndex
		bigGoalIDs = append(bigGoalIDs, goal.ID)
	}

	mediumGoals, err := m.findMediumGoals(ctx, bson.M{
		"big_goal_id":  bson.M{"$in": bigGoalIDs},
		"is_completed": false,
	})
	if err != nil {
		return nil, err
	}

	mediumByID := make(map[primitive.ObjectID]models.MediumGoal, len(mediumGoals))
	mediumGoalIDs := make([]primitive.ObjectID, 0, len(mediumGoals))
	for _, goal := range mediumGoals {
		mediumByID[goal.ID] = goal
		mediumGoalIDs = append(mediumGoalIDs, goal.ID)
	}

	tasks, err := m.findDailyTasks(ctx, bson.M{"medium_goal_id": bson.M{"$in": mediumGoalIDs}})
	if err != nil {
		return nil, err
	}

	activeTasks := make([]models.ActiveTask, 0, len(tasks))
	for _, task := range tasks {
		medium := mediumByID[task.MediumGoalID]
		activeTasks = append(activeTasks, models.ActiveTask{
			DailyTask:       task,
			BigGoalOrder:    bigOrderByID[medium.BigGoalID],
			MediumGoalOrder: medium.OrderIndex,
		})
	}
	return activeTasks, nil
}

func (m *MongoStorage) findBigGoals(ctx context.Context, filter interface{}) ([]models.BigGoal, error) {
	cursor, err := m.collection("big_goals").Find(ctx, filter, byOrderIndex)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var goals []models.BigGoal
	if err := cursor.All(ctx, &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

func (m *MongoStorage) findMediumGoals(ctx context.Context, filter interface{}) ([]models.MediumGoal, error) {
	cursor, err := m.collection("medium_goals").Find(ctx, filter, byOrderIndex)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var goals []models.MediumGoal
	if err := cursor.All(ctx, &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

func (m *MongoStorage) findDailyTasks(ctx context.Context, filter interface{}) ([]models.DailyTask, error) {
	cursor, err := m.collection("daily_tasks").Find(ctx, filter, byOrderIndex)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []models.DailyTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AddBigGoal adds a new big goal document to the 'big_goals' collection.
// Returns the added goal with its ID filled in, and an error if the insert
// operation fails.
func (m *MongoStorage) AddBigGoal(ctx context.Context, goal *models.BigGoal) (*models.BigGoal, error) {
	if goal.UserID.IsZero() {
		return nil, errors.New("big goal requires an owner")
	}
	if _, err := validate.GoalTitle(goal.Title); err != nil {
		return nil, err
	}

	result, err := m.collection("big_goals").InsertOne(ctx, goal)
	if err != nil {
		return nil, mapDuplicateKey(err, "a big goal already occupies this order slot")
	}
	goal.ID = result.InsertedID.(primitive.ObjectID)
	return goal, nil
}

// AddMediumGoal adds a new medium goal document to the 'medium_goals'
// collection after checking that the parent big goal exists.
func (m *MongoStorage) AddMediumGoal(ctx context.Context, goal *models.MediumGoal) (*models.MediumGoal, error) {
	if goal.BigGoalID.IsZero() {
		return nil, errors.New("medium goal requires a parent big goal")
	}
	if _, err := validate.GoalTitle(goal.Title); err != nil {
		return nil, err
	}

	err := m.collection("big_goals").FindOne(ctx, bson.M{"_id": goal.BigGoalID}).Err()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("no big goal found with id %s", goal.BigGoalID.Hex())
		}
		return nil, err
	}

	result, err := m.collection("medium_goals").InsertOne(ctx, goal)
	if err != nil {
		return nil, mapDuplicateKey(err, "a medium goal already occupies this order slot")
	}
	goal.ID = result.InsertedID.(primitive.ObjectID)
	return goal, nil
}

// AddDailyTask adds a new daily task document to the 'daily_tasks' collection
// after checking that the parent medium goal exists.
func (m *MongoStorage) AddDailyTask(ctx context.Context, task *models.DailyTask) (*models.DailyTask, error) {
	if task.MediumGoalID.IsZero() {
		return nil, errors.New("daily task requires a parent medium goal")
	}
	if _, err := validate.TaskTitle(task.Title); err != nil {
		return nil, err
	}

	err := m.collection("medium_goals").FindOne(ctx, bson.M{"_id": task.MediumGoalID}).Err()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("no medium goal found with id %s", task.MediumGoalID.Hex())
		}
		return nil, err
	}

	result, err := m.collection("daily_tasks").InsertOne(ctx, task)
	if err != nil {
		return nil, mapDuplicateKey(err, "a task already occupies this order slot")
	}
	task.ID = result.InsertedID.(primitive.ObjectID)
	return task, nil
}

// DeleteDailyTask deletes a daily task document and all of its checkin
// history. Returns the result of the task deletion as a DeleteResult instance
// and an error if the delete operation fails.
func (m *MongoStorage) DeleteDailyTask(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	result, err := m.collection("daily_tasks").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if result.DeletedCount == 0 {
		return nil, errors.New("task not found")
	}

	_, err = m.collection("daily_task_checkins").DeleteMany(ctx, bson.M{"task_id": id})
	if err != nil {
		return nil, err
	}

	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// SetTaskCompleted updates a daily task's current completion flag.
func (m *MongoStorage) SetTaskCompleted(ctx context.Context, id primitive.ObjectID, completed bool) error {
	result, err := m.collection("daily_tasks").UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"completed": completed}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("no task found to update")
	}
	return nil
}

// SetMediumGoalCompletion updates a medium goal's manual completion override.
// completedAt is stored alongside it when completing and removed when
// un-completing.
func (m *MongoStorage) SetMediumGoalCompletion(ctx context.Context, id primitive.ObjectID, completed bool, completedAt *time.Time) error {
	update := bson.M{"$set": bson.M{"is_completed": completed}}
	if completedAt != nil {
		update["$set"].(bson.M)["completed_at"] = *completedAt
	} else {
		update["$unset"] = bson.M{"completed_at": ""}
	}

	result, err := m.collection("medium_goals").UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("no medium goal found to update")
	}
	return nil
}

// SetBigGoalOrderIndex rewrites one big goal's order index.
func (m *MongoStorage) SetBigGoalOrderIndex(ctx context.Context, id primitive.ObjectID, index int) error {
	return m.setOrderIndex(ctx, "big_goals", id, index)
}

// SetMediumGoalOrderIndex rewrites one medium goal's order index.
func (m *MongoStorage) SetMediumGoalOrderIndex(ctx context.Context, id primitive.ObjectID, index int) error {
	return m.setOrderIndex(ctx, "medium_goals", id, index)
}

// SetTaskOrderIndex rewrites one daily task's order index.
func (m *MongoStorage) SetTaskOrderIndex(ctx context.Context, id primitive.ObjectID, index int) error {
	return m.setOrderIndex(ctx, "daily_tasks", id, index)
}

func (m *MongoStorage) setOrderIndex(ctx context.Context, collectionName string, id primitive.ObjectID, index int) error {
	result, err := m.collection(collectionName).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"order_index": index}},
	)
	if err != nil {
		return mapDuplicateKey(err, "order index already taken in this sibling set")
	}
	if result.MatchedCount == 0 {
		return errors.New("no document found to reorder")
	}
	return nil
}

// UpsertCheckin writes the checkin row for (task, date). Writing the same
// pair twice updates the existing row rather than inserting a duplicate; the
// unique (task_id, checkin_date) index backs this up.
func (m *MongoStorage) UpsertCheckin(ctx context.Context, checkin *models.DailyTaskCheckin) error {
	if checkin.TaskID.IsZero() || checkin.CheckinDate == "" {
		return errors.New("checkin requires a task id and a date")
	}

	_, err := m.collection("daily_task_checkins").UpdateOne(
		ctx,
		bson.M{"task_id": checkin.TaskID, "checkin_date": checkin.CheckinDate},
		bson.M{
			"$set":         bson.M{"completed": checkin.Completed},
			"$setOnInsert": bson.M{"created_at": checkin.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// FindCheckins finds checkin documents for the given tasks within the
// [from, to] inclusive ISO date range.
func (m *MongoStorage) FindCheckins(ctx context.Context, taskIDs []primitive.ObjectID, from, to string) ([]models.DailyTaskCheckin, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	cursor, err := m.collection("daily_task_checkins").Find(ctx, bson.M{
		"task_id":      bson.M{"$in": taskIDs},
		"checkin_date": bson.M{"$gte": from, "$lte": to},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var checkins []models.DailyTaskCheckin
	if err := cursor.All(ctx, &checkins); err != nil {
		return nil, err
	}
	return checkins, nil
}

// mapDuplicateKey turns a MongoDB duplicate-key write error (code 11000) into
// a descriptive error, leaving every other error untouched.
func mapDuplicateKey(err error, message string) error {
	if writeException, ok := err.(mongo.WriteException); ok {
		for _, writeError := range writeException.WriteErrors {
			if writeError.Code == 11000 {
				return errors.New(message)
			}
		}
	}
	return err
}
