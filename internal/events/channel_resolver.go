package events

// UserChannel is the pub/sub channel carrying inbound events for a user.
func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}

// OutboundChannel is the pub/sub channel the user's intents are written to.
func OutboundChannel(userID string) string {
	return ChannelPrefixOutbound + userID
}
