package entities

// Task is one unit of background work scheduled on the task manager.
type Task func()
