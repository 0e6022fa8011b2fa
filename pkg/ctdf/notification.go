package ctdf

import "time"

type Notification struct {
	TargetUser string
	Type       NotificationType

	Title   string
	Message string
}

type NotificationType string

const (
	NotificationTypePush  NotificationType = "Push"
	NotificationTypeEmail NotificationType = "Email"
)

type UserPushNotificationTarget struct {
	UserID                string
	PushNotificationToken string

	ModificationDateTime time.Time
}
