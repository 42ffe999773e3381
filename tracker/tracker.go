package tracker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/events"
	"github.com/jghoshh/ascent/lib/calendar"
	"github.com/jghoshh/ascent/lib/order"
	"github.com/jghoshh/ascent/lib/progress"
	"github.com/jghoshh/ascent/lib/validate"
	"github.com/jghoshh/ascent/models"
	"github.com/jghoshh/ascent/storage"
	"github.com/jghoshh/ascent/storage/cache"
)

// Tracker owns the cached goal tree and the cached active-task list for one
// user, and exposes the read accessors and mutating operations that the
// presentation layer consumes. Every mutating operation is reflected in the
// cache before the store round-trip completes, and rolled back to the
// pre-mutation snapshot if the round-trip fails. The store, not the cache, is
// the final arbiter: every successful mutation invalidates the cache so the
// next read re-fetches authoritative state.
type Tracker struct {
	store     storage.StorageInterface
	taskCache cache.TaskCacheInterface // optional; nil disables the fallback
	publisher events.Publisher         // optional; nil disables event fanout
	userID    primitive.ObjectID

	// mu serializes cache access for the duration of an operation,
	// including the store round-trip, so a mutation's
	// snapshot/patch/restore sequence is never interleaved with another
	// caller's.
	mu    sync.Mutex
	tree  slot[[]models.GoalTree]
	tasks slot[[]models.ActiveTask]
}

// New constructs a Tracker for one user. The cache slots belong to the
// returned value; there is no package-level cache state. taskCache and
// publisher may be nil, which disables the fallback cache and the event
// fanout respectively.
func New(store storage.StorageInterface, taskCache cache.TaskCacheInterface, publisher events.Publisher, userID primitive.ObjectID) *Tracker {
	return &Tracker{
		store:     store,
		taskCache: taskCache,
		publisher: publisher,
		userID:    userID,
	}
}

// LoadTree returns the user's decorated goal tree, fetching it from the
// store when the cache slot is empty. There is no fallback for the full
// tree; a store failure surfaces as a FetchError. The returned tree is a
// copy; callers may sort or edit it freely.
func (t *Tracker) LoadTree(ctx context.Context) ([]models.GoalTree, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tree, err := t.treeLocked(ctx)
	if err != nil {
		return nil, err
	}
	return cloneTree(tree), nil
}

func (t *Tracker) treeLocked(ctx context.Context) ([]models.GoalTree, error) {
	if tree, ok := t.tree.get(); ok {
		return tree, nil
	}

	raw, err := t.store.LoadGoalTree(ctx, t.userID)
	if err != nil {
		return nil, &FetchError{Op: "load goal tree", Err: err}
	}

	decorated := progress.Decorate(raw)
	t.tree.set(decorated)
	return decorated, nil
}

// LoadActiveTasks returns the user's active tasks (tasks whose parent medium
// goal is not completed) in a deterministic order: parent big goal order,
// parent medium goal order, own order, then title. On a store failure the
// last-known-good snapshot from the fallback cache is substituted when it
// holds at least one entry; otherwise the FetchError propagates. Successful
// fetches refresh the fallback snapshot. The returned list is a copy;
// callers may sort or edit it freely.
func (t *Tracker) LoadActiveTasks(ctx context.Context) ([]models.ActiveTask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks, err := t.activeTasksLocked(ctx)
	if err != nil {
		return nil, err
	}
	return cloneTasks(tasks), nil
}

func (t *Tracker) activeTasksLocked(ctx context.Context) ([]models.ActiveTask, error) {
	if tasks, ok := t.tasks.get(); ok {
		return tasks, nil
	}

	list, err := t.store.LoadActiveTasks(ctx, t.userID)
	if err != nil {
		if t.taskCache != nil {
			cached, cacheErr := t.taskCache.Read(ctx, t.userID)
			if cacheErr == nil && len(cached) > 0 {
				sortActiveTasks(cached)
				t.tasks.set(cached)
				return cached, nil
			}
		}
		return nil, &FetchError{Op: "load active tasks", Err: err}
	}

	sortActiveTasks(list)
	t.tasks.set(list)

	if t.taskCache != nil {
		if cacheErr := t.taskCache.Persist(ctx, t.userID, list); cacheErr != nil {
			log.Printf("ascent: persisting task snapshot: %v", cacheErr)
		}
	}
	return list, nil
}

// LoadMonthCalendar computes the day-by-day completion status for the given
// month from the current active-task set and its checkin log.
func (t *Tracker) LoadMonthCalendar(ctx context.Context, year int, month time.Month) ([]calendar.DayStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks, err := t.activeTasksLocked(ctx)
	if err != nil {
		return nil, err
	}

	taskIDs := make([]primitive.ObjectID, 0, len(tasks))
	for _, task := range tasks {
		taskIDs = append(taskIDs, task.ID)
	}

	var checkins []models.DailyTaskCheckin
	if len(taskIDs) > 0 {
		from, to, _ := calendar.MonthRange(year, month)
		checkins, err = t.store.FindCheckins(ctx, taskIDs, from, to)
		if err != nil {
			return nil, &FetchError{Op: "load month calendar", Err: err}
		}
	}

	return calendar.BuildMonthCalendar(taskIDs, checkins, year, month), nil
}

// CreateBigGoal appends a new big goal at the end of the user's current big
// goals and reloads dependent caches.
func (t *Tracker) CreateBigGoal(ctx context.Context, title, description string, dueDate *time.Time) (*models.BigGoal, error) {
	trimmed, err := validate.GoalTitle(title)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tree, err := t.treeLocked(ctx)
	if err != nil {
		return nil, err
	}

	next := 0
	for _, goal := range tree {
		if goal.OrderIndex+1 > next {
			next = goal.OrderIndex + 1
		}
	}

	goal := &models.BigGoal{
		UserID:      t.userID,
		Title:       trimmed,
		Description: description,
		DueDate:     dueDate,
		OrderIndex:  next,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := t.store.AddBigGoal(ctx, goal)
	if err != nil {
		return nil, &WriteError{Op: "create big goal", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated)
	return created, nil
}

// CreateMediumGoal appends a new medium goal at the end of the given big
// goal's current medium goals.
func (t *Tracker) CreateMediumGoal(ctx context.Context, bigGoalID primitive.ObjectID, title string, dueDate *time.Time) (*models.MediumGoal, error) {
	trimmed, err := validate.GoalTitle(title)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tree, err := t.treeLocked(ctx)
	if err != nil {
		return nil, err
	}

	parent := findGoal(tree, bigGoalID)
	if parent == nil {
		return nil, fmt.Errorf("big goal %s not found", bigGoalID.Hex())
	}

	next := 0
	for _, medium := range parent.MediumGoals {
		if medium.OrderIndex+1 > next {
			next = medium.OrderIndex + 1
		}
	}

	goal := &models.MediumGoal{
		BigGoalID:  bigGoalID,
		Title:      trimmed,
		DueDate:    dueDate,
		OrderIndex: next,
	}

	created, err := t.store.AddMediumGoal(ctx, goal)
	if err != nil {
		return nil, &WriteError{Op: "create medium goal", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated)
	return created, nil
}

// CreateTask appends a new daily task at the end of the given medium goal's
// current tasks.
func (t *Tracker) CreateTask(ctx context.Context, mediumGoalID primitive.ObjectID, title string) (*models.DailyTask, error) {
	trimmed, err := validate.TaskTitle(title)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tree, err := t.treeLocked(ctx)
	if err != nil {
		return nil, err
	}

	parent := findMedium(tree, mediumGoalID)
	if parent == nil {
		return nil, fmt.Errorf("medium goal %s not found", mediumGoalID.Hex())
	}

	next := 0
	for _, task := range parent.DailyTasks {
		if task.OrderIndex+1 > next {
			next = task.OrderIndex + 1
		}
	}

	task := &models.DailyTask{
		MediumGoalID: mediumGoalID,
		Title:        trimmed,
		OrderIndex:   next,
	}

	created, err := t.store.AddDailyTask(ctx, task)
	if err != nil {
		return nil, &WriteError{Op: "create task", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated, events.KindCalendarInvalidated)
	return created, nil
}

// SetMediumGoalCompletion flips a medium goal's manual completion override.
// This is the only way a medium goal's completion changes; it is never
// inferred from its tasks. Completing a goal removes its tasks from the
// active-task view and from the calendar's universe.
func (t *Tracker) SetMediumGoalCompletion(ctx context.Context, mediumGoalID primitive.ObjectID, completed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var completedAt *time.Time
	if completed {
		now := time.Now().UTC()
		completedAt = &now
	}

	treeSnap, tasksSnap := t.tree.snapshot(), t.tasks.snapshot()
	t.patchMediumCompletion(mediumGoalID, completed, completedAt)

	if err := t.store.SetMediumGoalCompletion(ctx, mediumGoalID, completed, completedAt); err != nil {
		t.tree.restore(treeSnap)
		t.tasks.restore(tasksSnap)
		return &WriteError{Op: "set medium goal completion", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated, events.KindCalendarInvalidated)
	return nil
}

// ToggleTask updates a task's current completion flag and upserts the
// checkin row for (task, today). The two writes are not transactional: when
// the checkin write fails after the flag write succeeded, the flag is
// reverted best-effort so the store matches what the caller observes after
// rollback, and the operation reports a WriteError either way.
func (t *Tracker) ToggleTask(ctx context.Context, taskID primitive.ObjectID, completed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous, known := t.taskCompleted(taskID)
	if !known {
		previous = !completed
	}

	treeSnap, tasksSnap := t.tree.snapshot(), t.tasks.snapshot()
	t.patchTaskCompleted(taskID, completed)

	if err := t.store.SetTaskCompleted(ctx, taskID, completed); err != nil {
		t.tree.restore(treeSnap)
		t.tasks.restore(tasksSnap)
		return &WriteError{Op: "toggle task", Err: err}
	}

	now := time.Now().UTC()
	checkin := &models.DailyTaskCheckin{
		TaskID:      taskID,
		CheckinDate: now.Format("2006-01-02"),
		Completed:   completed,
		CreatedAt:   now,
	}
	if err := t.store.UpsertCheckin(ctx, checkin); err != nil {
		if revertErr := t.store.SetTaskCompleted(ctx, taskID, previous); revertErr != nil {
			log.Printf("ascent: reverting task flag after checkin failure: %v", revertErr)
		}
		t.tree.restore(treeSnap)
		t.tasks.restore(tasksSnap)
		return &WriteError{Op: "toggle task checkin", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated, events.KindCalendarInvalidated)
	return nil
}

// DeleteTask removes a daily task (and, through the store, its checkin
// history).
func (t *Tracker) DeleteTask(ctx context.Context, taskID primitive.ObjectID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	treeSnap, tasksSnap := t.tree.snapshot(), t.tasks.snapshot()
	t.patchTaskRemoved(taskID)

	if _, err := t.store.DeleteDailyTask(ctx, taskID); err != nil {
		t.tree.restore(treeSnap)
		t.tasks.restore(tasksSnap)
		return &WriteError{Op: "delete task", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated, events.KindCalendarInvalidated)
	return nil
}

// ReorderBigGoals rewrites the order of the user's big goals to match
// orderedIDs. The cache reflects the new order immediately; the store write
// runs through the two-phase order update and a failure restores the exact
// pre-mutation snapshot.
func (t *Tracker) ReorderBigGoals(ctx context.Context, orderedIDs []primitive.ObjectID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	treeSnap, tasksSnap := t.tree.snapshot(), t.tasks.snapshot()
	t.patchBigGoalOrder(orderedIDs)

	if err := order.PersistOrder(ctx, orderedIDs, t.store.SetBigGoalOrderIndex); err != nil {
		t.tree.restore(treeSnap)
		t.tasks.restore(tasksSnap)
		return &WriteError{Op: "reorder big goals", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated)
	return nil
}

// ReorderMediumGoals rewrites the order of one big goal's medium goals.
func (t *Tracker) ReorderMediumGoals(ctx context.Context, bigGoalID primitive.ObjectID, orderedIDs []primitive.ObjectID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	treeSnap, tasksSnap := t.tree.snapshot(), t.tasks.snapshot()
	t.patchMediumGoalOrder(bigGoalID, orderedIDs)

	if err := order.PersistOrder(ctx, orderedIDs, t.store.SetMediumGoalOrderIndex); err != nil {
		t.tree.restore(treeSnap)
		t.tasks.restore(tasksSnap)
		return &WriteError{Op: "reorder medium goals", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated)
	return nil
}

// ReorderTasks rewrites the order of one medium goal's daily tasks.
func (t *Tracker) ReorderTasks(ctx context.Context, mediumGoalID primitive.ObjectID, orderedIDs []primitive.ObjectID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	treeSnap, tasksSnap := t.tree.snapshot(), t.tasks.snapshot()
	t.patchTaskOrder(mediumGoalID, orderedIDs)

	if err := order.PersistOrder(ctx, orderedIDs, t.store.SetTaskOrderIndex); err != nil {
		t.tree.restore(treeSnap)
		t.tasks.restore(tasksSnap)
		return &WriteError{Op: "reorder tasks", Err: err}
	}

	t.invalidateLocked()
	t.publish(events.KindTreeInvalidated, events.KindTasksInvalidated)
	return nil
}

func (t *Tracker) invalidateLocked() {
	t.tree.invalidate()
	t.tasks.invalidate()
}

// publish sends invalidation events best-effort; a broker failure never
// fails the mutation that triggered it.
func (t *Tracker) publish(kinds ...string) {
	if t.publisher == nil {
		return
	}
	for _, kind := range kinds {
		body, err := events.Body(kind, t.userID)
		if err == nil {
			err = t.publisher.Publish(body)
		}
		if err != nil {
			log.Printf("ascent: publishing %s event: %v", kind, err)
		}
	}
}

func sortActiveTasks(tasks []models.ActiveTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.BigGoalOrder != b.BigGoalOrder {
			return a.BigGoalOrder < b.BigGoalOrder
		}
		if a.MediumGoalOrder != b.MediumGoalOrder {
			return a.MediumGoalOrder < b.MediumGoalOrder
		}
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.Title < b.Title
	})
}

func findGoal(tree []models.GoalTree, id primitive.ObjectID) *models.GoalTree {
	for i := range tree {
		if tree[i].ID == id {
			return &tree[i]
		}
	}
	return nil
}

func findMedium(tree []models.GoalTree, id primitive.ObjectID) *models.MediumGoalNode {
	for i := range tree {
		for j := range tree[i].MediumGoals {
			if tree[i].MediumGoals[j].ID == id {
				return &tree[i].MediumGoals[j]
			}
		}
	}
	return nil
}
