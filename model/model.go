package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Framer types
const (
	FramerDevice = "device"
	FramerRTSP   = "rtsp"
	FramerRandom = "random"
)

type Camera struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Location      string  `json:"location" yaml:"location"`
	Source        string  `json:"source" yaml:"source"` // device index or stream URL
	FramerType    string  `json:"framerType" yaml:"framer_type"`
	FocalLengthPx float64 `json:"focalLengthPx" yaml:"focal_length_px"` // 0 means use the configured default
	Excluded      bool    `json:"excluded" yaml:"excluded"`
	AgentID       string  `json:"agentId" yaml:"-"`       // The agent id that is currently controlling this camera
	StartupTime   int64   `json:"startupTime" yaml:"-"`   // The startup time of the agent
	LastHeartBeat int64   `json:"lastHeartbeat" yaml:"-"` // The last heartbeat time of the agent
	Uptime        int64   `json:"uptime" yaml:"-"`        // The uptime of the agent
}

type AlerterStats struct {
	Name      string `json:"name"`
	Alerts    int    `json:"alerts"`
	Dropped   int    `json:"dropped"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type StreamerStats struct {
	Name        string  `json:"name"`
	Worker      int     `json:"worker"`
	Camera      string  `json:"camera"`
	FPS         int     `json:"fps"`
	Frames      int     `json:"frames"`
	Detections  int     `json:"detections"`
	Events      int     `json:"events"`
	Errors      int     `json:"errors"`
	Uptime      int64   `json:"uptime"`
	AvgProcTime float64 `json:"avgProcTime"`
	Timestamp   int64   `json:"timestamp"`
}

type FramerStats struct {
	Name          string `json:"name"`
	Camera        string `json:"camera"`
	FPS           int    `json:"fps"`
	Frames        int    `json:"frames"`
	SkippedFrames int    `json:"skippedFrames"`
	Errors        int    `json:"errors"`
	Uptime        int64  `json:"uptime"`
	Timestamp     int64  `json:"timestamp"`
}

type AgentStats struct {
	ID        string `json:"id"`     // Agent ID
	Camera    string `json:"camera"` // Camera name
	Uptime    int64  `json:"uptime"` // Uptime of the agent
	Timestamp int64  `json:"timestamp"`
}

type AgentsManagerStats struct {
	TotalStartedAgents     int64   `json:"startedAgents"`
	TotalStoppedAgents     int64   `json:"stoppedAgents"`
	TotalRunningAgents     int64   `json:"runningAgents"`
	TotalUnaccommodated    int64   `json:"unaccommodated"`
	TotalRunningUptime     int64   `json:"runningUptime"`
	AvgRunningAgentsPerMin float64 `json:"avgRunningAgentsPerMin"`
	Timestamp              int64   `json:"timestamp"`
}
