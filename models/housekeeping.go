package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskRequested  TaskStatus = "requested"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Open tasks still hold the room.
func (s TaskStatus) Open() bool {
	switch s {
	case TaskRequested, TaskAssigned, TaskInProgress, TaskDelayed:
		return true
	}
	return false
}

type TaskType string

const (
	TaskCleaning     TaskType = "cleaning"
	TaskDeepCleaning TaskType = "deep-cleaning"
	TaskMaintenance  TaskType = "maintenance"
	TaskInspection   TaskType = "inspection"
)

type TaskPriority string

const (
	PriorityLow       TaskPriority = "low"
	PriorityMedium    TaskPriority = "medium"
	PriorityHigh      TaskPriority = "high"
	PriorityEmergency TaskPriority = "emergency"
)

type HousekeepingTask struct {
	gorm.Model
	RoomID    uint         `json:"room" gorm:"not null;index"`
	BookingID *uint        `json:"booking" gorm:"index"`
	Type      TaskType     `json:"type" gorm:"size:24;not null"`
	Status    TaskStatus   `json:"status" gorm:"size:16;not null;default:requested;index"`
	Priority  TaskPriority `json:"priority" gorm:"size:16;not null;default:medium"`

	AssignedTo  *uint      `json:"assignedTo"`
	RequestedBy uint       `json:"requestedBy"`
	Notes       string     `json:"notes" gorm:"size:1000"`
	StartedAt   *time.Time `json:"actualStart"`
	CompletedAt *time.Time `json:"completedAt"`

	IdempotencyKey *string `json:"-" gorm:"size:128;uniqueIndex"`
}
