package models

// All lists the relational models for auto-migration
func All() []interface{} {
	return []interface{}{
		&User{},
		&ConnectionRequest{},
		&Message{},
		&TypingStatus{},
		&Notification{},
	}
}
