package utils

import "github.com/google/uuid"

// GenID generates a message id.
func GenID() string { return "msg_" + uuid.NewString() }

// GenConvID generates a conversation id.
func GenConvID() string { return "conv_" + uuid.NewString() }

// GenNotifID generates a notification id.
func GenNotifID() string { return "ntf_" + uuid.NewString() }
