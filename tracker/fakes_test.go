package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/models"
	"github.com/jghoshh/ascent/storage"
)

// fakeStorage is an in-memory StorageInterface. Each write mutates the fake's
// slices, so a post-invalidation re-fetch observes exactly what was written.
// Per-operation errors are injected through the err* fields.
type fakeStorage struct {
	bigGoals    []models.BigGoal
	mediumGoals []models.MediumGoal
	tasks       []models.DailyTask
	checkins    []models.DailyTaskCheckin

	errLoadTree        error
	errLoadActiveTasks error
	errSetTaskDone     error
	errUpsertCheckin   error
	errSetTaskOrder    error
	errSetMediumOrder  error
	errSetBigOrder     error
	errDeleteTask      error
	errSetMediumDone   error

	// orderMu guards the order-index writes, which arrive concurrently.
	orderMu     sync.Mutex
	orderWrites []int // every order-index write, in arrival order
}

func (f *fakeStorage) Connect(dbName, uri string) error { return nil }
func (f *fakeStorage) Disconnect() error                { return nil }

func (f *fakeStorage) LoadGoalTree(_ context.Context, userID primitive.ObjectID) ([]models.GoalTree, error) {
	if f.errLoadTree != nil {
		return nil, f.errLoadTree
	}

	tree := []models.GoalTree{}
	for _, big := range f.bigGoals {
		if big.UserID != userID {
			continue
		}
		node := models.GoalTree{BigGoal: big}
		for _, medium := range f.mediumGoals {
			if medium.BigGoalID != big.ID {
				continue
			}
			mediumNode := models.MediumGoalNode{MediumGoal: medium}
			for _, task := range f.tasks {
				if task.MediumGoalID == medium.ID {
					mediumNode.DailyTasks = append(mediumNode.DailyTasks, task)
				}
			}
			node.MediumGoals = append(node.MediumGoals, mediumNode)
		}
		tree = append(tree, node)
	}
	sort.SliceStable(tree, func(i, j int) bool { return tree[i].OrderIndex < tree[j].OrderIndex })
	return tree, nil
}

func (f *fakeStorage) LoadActiveTasks(_ context.Context, userID primitive.ObjectID) ([]models.ActiveTask, error) {
	if f.errLoadActiveTasks != nil {
		return nil, f.errLoadActiveTasks
	}

	bigOrder := map[primitive.ObjectID]int{}
	for _, big := range f.bigGoals {
		if big.UserID == userID {
			bigOrder[big.ID] = big.OrderIndex
		}
	}

	active := []models.ActiveTask{}
	for _, medium := range f.mediumGoals {
		order, owned := bigOrder[medium.BigGoalID]
		if !owned || medium.IsCompleted {
			continue
		}
		for _, task := range f.tasks {
			if task.MediumGoalID == medium.ID {
				active = append(active, models.ActiveTask{
					DailyTask:       task,
					BigGoalOrder:    order,
					MediumGoalOrder: medium.OrderIndex,
				})
			}
		}
	}
	return active, nil
}

func (f *fakeStorage) AddBigGoal(_ context.Context, goal *models.BigGoal) (*models.BigGoal, error) {
	goal.ID = primitive.NewObjectID()
	f.bigGoals = append(f.bigGoals, *goal)
	return goal, nil
}

func (f *fakeStorage) AddMediumGoal(_ context.Context, goal *models.MediumGoal) (*models.MediumGoal, error) {
	goal.ID = primitive.NewObjectID()
	f.mediumGoals = append(f.mediumGoals, *goal)
	return goal, nil
}

func (f *fakeStorage) AddDailyTask(_ context.Context, task *models.DailyTask) (*models.DailyTask, error) {
	task.ID = primitive.NewObjectID()
	f.tasks = append(f.tasks, *task)
	return task, nil
}

func (f *fakeStorage) DeleteDailyTask(_ context.Context, id primitive.ObjectID) (*storage.DeleteResult, error) {
	if f.errDeleteTask != nil {
		return nil, f.errDeleteTask
	}
	for i, task := range f.tasks {
		if task.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			kept := f.checkins[:0]
			for _, checkin := range f.checkins {
				if checkin.TaskID != id {
					kept = append(kept, checkin)
				}
			}
			f.checkins = kept
			return &storage.DeleteResult{DeletedCount: 1}, nil
		}
	}
	return &storage.DeleteResult{}, nil
}

func (f *fakeStorage) SetTaskCompleted(_ context.Context, id primitive.ObjectID, completed bool) error {
	if f.errSetTaskDone != nil {
		return f.errSetTaskDone
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Completed = completed
		}
	}
	return nil
}

func (f *fakeStorage) SetMediumGoalCompletion(_ context.Context, id primitive.ObjectID, completed bool, completedAt *time.Time) error {
	if f.errSetMediumDone != nil {
		return f.errSetMediumDone
	}
	for i := range f.mediumGoals {
		if f.mediumGoals[i].ID == id {
			f.mediumGoals[i].IsCompleted = completed
			f.mediumGoals[i].CompletedAt = completedAt
		}
	}
	return nil
}

func (f *fakeStorage) SetBigGoalOrderIndex(_ context.Context, id primitive.ObjectID, index int) error {
	if f.errSetBigOrder != nil {
		return f.errSetBigOrder
	}
	f.orderMu.Lock()
	defer f.orderMu.Unlock()
	f.orderWrites = append(f.orderWrites, index)
	for i := range f.bigGoals {
		if f.bigGoals[i].ID == id {
			f.bigGoals[i].OrderIndex = index
		}
	}
	return nil
}

func (f *fakeStorage) SetMediumGoalOrderIndex(_ context.Context, id primitive.ObjectID, index int) error {
	if f.errSetMediumOrder != nil {
		return f.errSetMediumOrder
	}
	f.orderMu.Lock()
	defer f.orderMu.Unlock()
	f.orderWrites = append(f.orderWrites, index)
	for i := range f.mediumGoals {
		if f.mediumGoals[i].ID == id {
			f.mediumGoals[i].OrderIndex = index
		}
	}
	return nil
}

func (f *fakeStorage) SetTaskOrderIndex(_ context.Context, id primitive.ObjectID, index int) error {
	if f.errSetTaskOrder != nil {
		return f.errSetTaskOrder
	}
	f.orderMu.Lock()
	defer f.orderMu.Unlock()
	f.orderWrites = append(f.orderWrites, index)
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].OrderIndex = index
		}
	}
	return nil
}

func (f *fakeStorage) UpsertCheckin(_ context.Context, checkin *models.DailyTaskCheckin) error {
	if f.errUpsertCheckin != nil {
		return f.errUpsertCheckin
	}
	for i := range f.checkins {
		if f.checkins[i].TaskID == checkin.TaskID && f.checkins[i].CheckinDate == checkin.CheckinDate {
			f.checkins[i].Completed = checkin.Completed
			return nil
		}
	}
	record := *checkin
	record.ID = primitive.NewObjectID()
	f.checkins = append(f.checkins, record)
	return nil
}

func (f *fakeStorage) FindCheckins(_ context.Context, taskIDs []primitive.ObjectID, from, to string) ([]models.DailyTaskCheckin, error) {
	wanted := map[primitive.ObjectID]struct{}{}
	for _, id := range taskIDs {
		wanted[id] = struct{}{}
	}
	var found []models.DailyTaskCheckin
	for _, checkin := range f.checkins {
		if _, ok := wanted[checkin.TaskID]; !ok {
			continue
		}
		if checkin.CheckinDate < from || checkin.CheckinDate > to {
			continue
		}
		found = append(found, checkin)
	}
	return found, nil
}

// fakeTaskCache is an in-memory TaskCacheInterface.
type fakeTaskCache struct {
	snapshots map[primitive.ObjectID][]models.ActiveTask
	readErr   error
	persists  int
}

func newFakeTaskCache() *fakeTaskCache {
	return &fakeTaskCache{snapshots: map[primitive.ObjectID][]models.ActiveTask{}}
}

func (c *fakeTaskCache) Connect(url string) error { return nil }
func (c *fakeTaskCache) Disconnect() error        { return nil }

func (c *fakeTaskCache) Persist(_ context.Context, userID primitive.ObjectID, tasks []models.ActiveTask) error {
	c.persists++
	c.snapshots[userID] = append([]models.ActiveTask(nil), tasks...)
	return nil
}

func (c *fakeTaskCache) Read(_ context.Context, userID primitive.ObjectID) ([]models.ActiveTask, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.snapshots[userID], nil
}

// fakePublisher records published event bodies.
type fakePublisher struct {
	published [][]byte
}

func (p *fakePublisher) Publish(body []byte) error {
	p.published = append(p.published, body)
	return nil
}
