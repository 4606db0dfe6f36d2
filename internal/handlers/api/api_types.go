package api

import (
	"time"

	"github.com/onsite-hq/onsite/model"
)

const apiVersion = "1.0"

type APIResponse struct {
	APIVersion string        `json:"apiVersion"`
	Data       any           `json:"data,omitempty"`
	Error      *APIErrorInfo `json:"error,omitempty"`
}

type APIErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{
		APIVersion: apiVersion,
		Data:       data,
	}
}

func NewErrorResponse(code int, message string) APIResponse {
	return APIResponse{
		APIVersion: apiVersion,
		Error:      &APIErrorInfo{Code: code, Message: message},
	}
}

type attendanceSessionResponse struct {
	SessionID    uint       `json:"sessionId"`
	EmployeeID   uint       `json:"employeeId"`
	CheckInTime  time.Time  `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime,omitempty"`
	GeofenceID   *uint      `json:"geofenceId,omitempty"`
	Status       string     `json:"status"`
	TotalHours   float64    `json:"totalHours"`
	Flagged      bool       `json:"flagged"`
	FlagReason   string     `json:"flagReason,omitempty"`
}

func newAttendanceSessionResponse(session *model.AttendanceSession) attendanceSessionResponse {
	return attendanceSessionResponse{
		SessionID:    session.ID,
		EmployeeID:   session.EmployeeID,
		CheckInTime:  session.CheckInTime,
		CheckOutTime: session.CheckOutTime,
		GeofenceID:   session.GeofenceID,
		Status:       session.Status,
		TotalHours:   session.TotalHours,
		Flagged:      session.Flagged,
		FlagReason:   session.FlagReason,
	}
}

type verificationSessionResponse struct {
	SessionID           uint      `json:"sessionId"`
	EmployeeID          uint      `json:"employeeId"`
	TriggeredAt         time.Time `json:"triggeredAt"`
	ExpiresAt           time.Time `json:"expiresAt"`
	TriggeredBy         string    `json:"triggeredBy"`
	Status              string    `json:"status"`
	FaceMatchScore      *float64  `json:"faceMatchScore,omitempty"`
	ResponseTimeSeconds *float64  `json:"responseTimeSeconds,omitempty"`
}

func newVerificationSessionResponse(session *model.VerificationSession) verificationSessionResponse {
	return verificationSessionResponse{
		SessionID:           session.ID,
		EmployeeID:          session.EmployeeID,
		TriggeredAt:         session.TriggeredAt,
		ExpiresAt:           session.ExpiresAt,
		TriggeredBy:         session.TriggeredBy,
		Status:              session.Status,
		FaceMatchScore:      session.FaceMatchScore,
		ResponseTimeSeconds: session.ResponseTimeSeconds,
	}
}

type fraudAlertResponse struct {
	AlertID     uint      `json:"alertId"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	EmployeeID  uint      `json:"employeeId"`
	Description string    `json:"description"`
	Evidence    any       `json:"evidence,omitempty"`
	Resolved    bool      `json:"resolved"`
	ResolvedBy  string    `json:"resolvedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newFraudAlertResponse(alert *model.FraudAlert) fraudAlertResponse {
	resp := fraudAlertResponse{
		AlertID:     alert.ID,
		Type:        alert.Type,
		Severity:    alert.Severity,
		EmployeeID:  alert.EmployeeID,
		Description: alert.Description,
		Resolved:    alert.Resolved,
		ResolvedBy:  alert.ResolvedBy,
		CreatedAt:   alert.CreatedAt,
	}
	if len(alert.Evidence) > 0 {
		resp.Evidence = alert.Evidence
	}
	return resp
}

type geofenceResponse struct {
	GeofenceID   uint    `json:"geofenceId"`
	Name         string  `json:"name"`
	CenterLat    float64 `json:"centerLat"`
	CenterLng    float64 `json:"centerLng"`
	RadiusMeters float64 `json:"radiusMeters"`
	Active       bool    `json:"active"`
}

func newGeofenceResponse(fence *model.Geofence) geofenceResponse {
	return geofenceResponse{
		GeofenceID:   fence.ID,
		Name:         fence.Name,
		CenterLat:    fence.CenterLat,
		CenterLng:    fence.CenterLng,
		RadiusMeters: fence.RadiusMeters,
		Active:       fence.Active,
	}
}
