package enums

import "fmt"

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationOrderCreated    NotificationType = "ORDER_CREATED"
	NotificationOrderShipped    NotificationType = "ORDER_SHIPPED"
	NotificationInventoryLow    NotificationType = "INVENTORY_LOW"
	NotificationReturnRequested NotificationType = "RETURN_REQUESTED"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderCreated,
	NotificationOrderShipped,
	NotificationInventoryLow,
	NotificationReturnRequested,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationChannel is the delivery medium.
type NotificationChannel string

const (
	NotificationChannelEmail    NotificationChannel = "EMAIL"
	NotificationChannelSlack    NotificationChannel = "SLACK"
	NotificationChannelWhatsApp NotificationChannel = "WHATSAPP"
)

var validNotificationChannels = []NotificationChannel{
	NotificationChannelEmail,
	NotificationChannelSlack,
	NotificationChannelWhatsApp,
}

// String implements fmt.Stringer.
func (c NotificationChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known NotificationChannel.
func (c NotificationChannel) IsValid() bool {
	for _, candidate := range validNotificationChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseNotificationChannel converts raw input into a NotificationChannel.
func ParseNotificationChannel(value string) (NotificationChannel, error) {
	for _, candidate := range validNotificationChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification channel %q", value)
}
