package models

import "time"

// Device transports. The periodic sync cycle polls tcp devices only;
// serial devices answer manual triggers, usb and push devices are
// ingestion sources that never get polled.
const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
	TransportUSB    = "usb"
	TransportPush   = "push"
)

// Device represents a registered biometric terminal and how to reach it.
type Device struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	Transport     string     `gorm:"size:16;not null;index" json:"transport"`
	Host          string     `gorm:"size:255" json:"host"`
	Port          int        `json:"port"`
	SerialPort    string     `gorm:"size:128" json:"serial_port"`
	SerialAddress int        `json:"serial_address"`
	BaudRate      int        `json:"baud_rate"`
	Active        bool       `gorm:"not null;default:true;index" json:"active"`
	LastSyncTime  *time.Time `json:"last_sync_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
