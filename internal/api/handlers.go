package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/metrics"
)

type createUserRequest struct {
	ID               int64  `json:"id"                binding:"required"`
	Username         string `json:"username"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	ReceiveReminders bool   `json:"receive_reminders"`
}

type createTaskRequest struct {
	Name        string    `json:"name"         binding:"required"`
	ChatID      int64     `json:"chat_id"      binding:"required"`
	Deadline    time.Time `json:"deadline"     binding:"required"`
	Status      string    `json:"status"`
	AssigneeIDs []int64   `json:"assignee_ids"`
}

type updateTaskRequest struct {
	Name     string    `json:"name"     binding:"required"`
	ChatID   int64     `json:"chat_id"  binding:"required"`
	Deadline time.Time `json:"deadline" binding:"required"`
	Status   string    `json:"status"   binding:"required"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user := &database.User{
		ID:               req.ID,
		Username:         req.Username,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		ReceiveReminders: req.ReceiveReminders,
	}
	if err := s.store.CreateUser(c.Request.Context(), user); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleListUsers(c *gin.Context) {
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	users, err := s.store.ListUsers(c.Request.Context(), offset, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	status := database.StatusNew
	if req.Status != "" {
		parsed, err := database.ParseTaskStatus(req.Status)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		status = parsed
	}

	task := &database.Task{
		Name:     req.Name,
		ChatID:   req.ChatID,
		Deadline: req.Deadline.UTC(),
		Status:   status,
	}
	if err := s.store.CreateTask(c.Request.Context(), task, req.AssigneeIDs); err != nil {
		s.writeError(c, err)
		return
	}
	metrics.TasksCreatedTotal.WithLabelValues("api").Inc()

	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	var filter database.TaskFilter

	if raw := c.Query("status"); raw != "" {
		status, err := database.ParseTaskStatus(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Status = status
	}
	if raw := c.Query("chat_id"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid chat_id")
			return
		}
		filter.ChatID = chatID
	}

	var ok bool
	if filter.Offset, ok = queryInt(c, "offset"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, err := database.ParseTaskStatus(req.Status)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	task := &database.Task{
		ID:       id,
		Name:     req.Name,
		ChatID:   req.ChatID,
		Deadline: req.Deadline.UTC(),
		Status:   status,
	}
	if err := s.store.UpdateTask(c.Request.Context(), task); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleSetTaskStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, err := database.ParseTaskStatus(req.Status)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := s.store.SetTaskStatus(ctx, id, status); err != nil {
		s.writeError(c, err)
		return
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleListAssignees(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetTask(ctx, id); err != nil {
		s.writeError(c, err)
		return
	}
	users, err := s.store.ListAssignees(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignees": users})
}

func (s *Server) handleAssignUser(c *gin.Context) {
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	if err := s.store.AssignUser(c.Request.Context(), taskID, userID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task_id": taskID, "user_id": userID})
}
