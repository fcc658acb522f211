package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/taskbot/internal/database"
	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/parser"
)

const (
	adminID    int64 = 1
	johnID     int64 = 10
	janeID     int64 = 11
	strangerID int64 = 99
	groupID    int64 = -100
)

var fixedNow = time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeAdmins struct {
	admins map[int64]bool
	err    error
	calls  int
}

func (f *fakeAdmins) IsChatAdmin(_ context.Context, _, userID int64) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.admins[userID], nil
}

type fixture struct {
	svc    *Service
	store  database.Store
	admins *fakeAdmins
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	store := database.NewStore(db, nil)
	t.Cleanup(func() { _ = store.Close() })

	admins := &fakeAdmins{admins: map[int64]bool{adminID: true}}
	svc := NewService(store, parser.New(nil, nil), admins, nil, WithClock(func() time.Time { return fixedNow }))

	ctx := context.Background()
	for _, inv := range []Invoker{
		{ID: adminID, Username: "boss", FirstName: "Boss"},
		{ID: johnID, Username: "john", FirstName: "John"},
		{ID: janeID, Username: "jane", FirstName: "Jane"},
	} {
		if _, err := svc.Register(ctx, inv); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	return &fixture{svc: svc, store: store, admins: admins}
}

func (f *fixture) taskCount(t *testing.T) int {
	t.Helper()
	tasks, err := f.store.ListTasks(context.Background(), database.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	return len(tasks)
}

var group = Chat{ID: groupID, Type: ChatGroup}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateTask(ctx, Invoker{ID: adminID}, group,
		`"Prepare presentation" @John @jane 2025-10-20 14:30`, nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if created.Task.Code != "TK0001" || created.Task.Name != "Prepare presentation" {
		t.Fatalf("unexpected task: %+v", created.Task)
	}
	if created.Task.Status != database.StatusNew || created.Task.ReminderSent || created.Task.ChatID != groupID {
		t.Fatalf("unexpected initial state: %+v", created.Task)
	}
	if !created.Task.Deadline.Equal(time.Date(2025, 10, 20, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("deadline = %v", created.Task.Deadline)
	}
	if len(created.Assignees) != 2 || created.Assignees[0].ID != johnID || created.Assignees[1].ID != janeID {
		t.Fatalf("assignees = %+v", created.Assignees)
	}
	if created.Source != parser.SourceStrict || created.Confidence != 1.0 {
		t.Fatalf("source = %s confidence = %v", created.Source, created.Confidence)
	}

	stored, err := f.store.ListAssignees(ctx, created.Task.ID)
	if err != nil || len(stored) != 2 {
		t.Fatalf("stored assignees = %v, err = %v", stored, err)
	}
}

func TestCreateTaskRejections(t *testing.T) {
	t.Parallel()

	valid := `"Report" @john 2025-10-20 14:30`

	tests := []struct {
		name    string
		inv     Invoker
		chat    Chat
		text    string
		check   func(error) bool
		adminOK bool
	}{
		{
			name:  "private chat",
			inv:   Invoker{ID: adminID},
			chat:  Chat{ID: adminID, Type: ChatPrivate},
			text:  valid,
			check: func(err error) bool { return errors.Is(err, ErrGroupOnly) },
		},
		{
			name:  "not an admin",
			inv:   Invoker{ID: johnID},
			chat:  group,
			text:  valid,
			check: func(err error) bool { return errors.Is(err, ErrAdminOnly) },
		},
		{
			name:  "empty text",
			inv:   Invoker{ID: adminID},
			chat:  group,
			text:  "  ",
			check: func(err error) bool { return errors.Is(err, ErrEmptyDescription) && errs.Is(err, errs.CodeParse) },
		},
		{
			name:  "empty text from non admin",
			inv:   Invoker{ID: johnID},
			chat:  group,
			text:  "",
			check: func(err error) bool { return errors.Is(err, ErrAdminOnly) },
		},
		{
			name:  "unparseable",
			inv:   Invoker{ID: adminID},
			chat:  group,
			text:  "do something someday",
			check: func(err error) bool { return errs.Is(err, errs.CodeParse) },
		},
		{
			name:  "past deadline",
			inv:   Invoker{ID: adminID},
			chat:  group,
			text:  `"Report" @john 2025-10-18 14:30`,
			check: func(err error) bool { return errs.Is(err, errs.CodeParse) },
		},
		{
			name: "unregistered assignee",
			inv:  Invoker{ID: adminID},
			chat: Chat{ID: groupID, Type: ChatSupergroup},
			text: `"Report" @john @unregistered 2025-10-20 14:30`,
			check: func(err error) bool {
				var unknown *errs.UnknownUserError
				return errors.As(err, &unknown) && unknown.Mention == "@unregistered"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			_, err := f.svc.CreateTask(context.Background(), tt.inv, tt.chat, tt.text, nil)
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if n := f.taskCount(t); n != 0 {
				t.Fatalf("rejected command wrote %d tasks", n)
			}
		})
	}
}

func TestCreateTaskAdminLookupFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.admins.err = errors.New("telegram unreachable")

	_, err := f.svc.CreateTask(context.Background(), Invoker{ID: adminID}, group, `"Report" @john 2025-10-20 14:30`, nil)
	if err == nil || errors.Is(err, ErrAdminOnly) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
	if n := f.taskCount(t); n != 0 {
		t.Fatalf("wrote %d tasks", n)
	}
}

func TestResolveMentionsByUserID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	users, err := f.svc.ResolveMentions(context.Background(), []parser.Mention{
		{UserID: janeID, Name: "Jane"},
		{Username: "JANE"},
		{Username: "john"},
	})
	if err != nil {
		t.Fatalf("ResolveMentions: %v", err)
	}
	if len(users) != 2 || users[0].ID != janeID || users[1].ID != johnID {
		t.Fatalf("users = %+v", users)
	}

	_, err = f.svc.ResolveMentions(context.Background(), []parser.Mention{{UserID: 555, Name: "Nobody"}})
	var unknown *errs.UnknownUserError
	if !errors.As(err, &unknown) || unknown.Mention != "Nobody" {
		t.Fatalf("expected unknown user Nobody, got %v", err)
	}
}

func TestOptIn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.OptIn(ctx, Invoker{ID: johnID}, group); !errors.Is(err, ErrPrivateOnly) {
		t.Fatalf("group opt-in: %v", err)
	}
	user, _ := f.store.GetUser(ctx, johnID)
	if user.ReceiveReminders {
		t.Fatal("group opt-in must not change the flag")
	}

	if err := f.svc.OptIn(ctx, Invoker{ID: johnID}, Chat{ID: johnID, Type: ChatPrivate}); err != nil {
		t.Fatalf("OptIn: %v", err)
	}
	user, _ = f.store.GetUser(ctx, johnID)
	if !user.ReceiveReminders {
		t.Fatal("expected opt-in to be stored")
	}

	err := f.svc.OptIn(ctx, Invoker{ID: strangerID, Username: "ghost"}, Chat{ID: strangerID, Type: ChatPrivate})
	if !errs.Is(err, errs.CodeUnknownUser) {
		t.Fatalf("unregistered opt-in: %v", err)
	}

	// Re-registering keeps the opt-in.
	if _, err := f.svc.Register(ctx, Invoker{ID: johnID, Username: "johnny"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	user, _ = f.store.GetUser(ctx, johnID)
	if !user.ReceiveReminders || user.Username != "johnny" {
		t.Fatalf("unexpected user after re-register: %+v", user)
	}
}

func TestListMyTasksOrdering(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	admin := Invoker{ID: adminID}

	for _, text := range []string{
		`"Later" @john 2025-10-22 10:00`,
		`"Sooner" @john 2025-10-20 10:00`,
		`"Not mine" @jane 2025-10-19 12:00`,
		`"Middle" @john @jane 2025-10-21 10:00`,
	} {
		if _, err := f.svc.CreateTask(ctx, admin, group, text, nil); err != nil {
			t.Fatalf("CreateTask %q: %v", text, err)
		}
	}
	middle, _ := f.store.GetTaskByCode(ctx, "TK0004")
	if err := f.store.SetTaskStatus(ctx, middle.ID, database.StatusDone); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	tasks, err := f.svc.ListMyTasks(ctx, Invoker{ID: johnID}, nil)
	if err != nil {
		t.Fatalf("ListMyTasks: %v", err)
	}
	var names []string
	for _, task := range tasks {
		names = append(names, task.Name)
	}
	if len(names) != 2 || names[0] != "Sooner" || names[1] != "Later" {
		t.Fatalf("open tasks = %v", names)
	}

	done, err := f.svc.ListMyTasks(ctx, Invoker{ID: johnID}, []database.TaskStatus{database.StatusDone})
	if err != nil || len(done) != 1 || done[0].Name != "Middle" {
		t.Fatalf("done tasks = %+v, err = %v", done, err)
	}

	none, err := f.svc.ListMyTasks(ctx, Invoker{ID: strangerID}, nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("stranger tasks = %+v, err = %v", none, err)
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateTask(ctx, Invoker{ID: adminID}, group, `"Report" @john 2025-10-20 14:30`, nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	task, err := f.svc.UpdateStatus(ctx, Invoker{ID: johnID}, "tk0001", database.StatusInProgress)
	if err != nil || task.Status != database.StatusInProgress {
		t.Fatalf("assignee update: %+v, %v", task, err)
	}

	if _, err := f.svc.UpdateStatus(ctx, Invoker{ID: janeID}, created.Task.Code, database.StatusDone); !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("non-assignee update: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, Invoker{ID: adminID}, created.Task.Code, database.StatusDone); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	stored, _ := f.store.GetTask(ctx, created.Task.ID)
	if stored.Status != database.StatusDone {
		t.Fatalf("stored status = %s", stored.Status)
	}

	if _, err := f.svc.UpdateStatus(ctx, Invoker{ID: adminID}, "TK9999", database.StatusDone); !errs.Is(err, errs.CodeNotFound) {
		t.Fatalf("missing task: %v", err)
	}
}

func TestListDone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateTask(ctx, Invoker{ID: adminID}, group, `"Report" @john 2025-10-20 14:30`, nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := f.store.SetTaskStatus(ctx, created.Task.ID, database.StatusDone); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	user, tasks, err := f.svc.ListDone(ctx, Invoker{ID: adminID}, group, &parser.Mention{Username: "john"})
	if err != nil {
		t.Fatalf("ListDone: %v", err)
	}
	if user.ID != johnID || len(tasks) != 1 || tasks[0].Code != "TK0001" {
		t.Fatalf("user = %+v tasks = %+v", user, tasks)
	}

	_, tasks, err = f.svc.ListDone(ctx, Invoker{ID: adminID}, group, nil)
	if err != nil || len(tasks) != 0 {
		t.Fatalf("admin's own done tasks = %+v, err = %v", tasks, err)
	}

	if _, _, err := f.svc.ListDone(ctx, Invoker{ID: johnID}, group, nil); !errors.Is(err, ErrAdminOnly) {
		t.Fatalf("non-admin: %v", err)
	}
	if _, _, err := f.svc.ListDone(ctx, Invoker{ID: adminID}, Chat{ID: adminID, Type: ChatPrivate}, nil); !errors.Is(err, ErrGroupOnly) {
		t.Fatalf("private chat: %v", err)
	}
}
