package errors

var (
	ErrMissingIdentity      = Validation("user id is required")
	ErrSelfRequest          = Validation("cannot send a friend request to yourself")
	ErrEmptyMessage         = Validation("message content cannot be empty")
	ErrMessageTooLong       = Validation("message content exceeds 4000 characters")
	ErrInvalidDecision      = Validation("decision must be accepted or declined")
	ErrReceiverNotFound     = NotFound("receiver user not found")
	ErrUserNotFound         = NotFound("user not found")
	ErrRequestNotFound      = NotFound("friend request not found")
	ErrNotificationNotFound = NotFound("notification not found")
	ErrActiveRequestExists  = AlreadyExists("a pending or accepted friend request already exists between these users")
	ErrRequestNotPending    = FailedPrecondition("friend request already processed")
	ErrNotFriendRequest     = FailedPrecondition("notification is not a friend request")
	ErrNotRequestReceiver   = Forbidden("only the receiver may respond to this friend request")
	ErrNotNotificationOwner = Forbidden("notification belongs to another user")
	ErrNotConnected         = Forbidden("users are not connected")
)
