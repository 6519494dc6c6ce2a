package activity

// Kind identifies a trackable user behavior. The set is closed; quest
// templates only ever reference these values.
type Kind string

const (
	KindCreateNote           Kind = "create_note"
	KindReplyToPeer          Kind = "reply_to_peer"
	KindCompleteFocusSession Kind = "complete_focus_session"
	KindJoinCircle           Kind = "join_circle"
	KindUpvoteNote           Kind = "upvote_note"
	KindCommentNote          Kind = "comment_note"
	KindUpdateProfile        Kind = "update_profile"
	KindShareLink            Kind = "share_link"
)

// Kinds lists every trackable action kind in a stable order.
var Kinds = []Kind{
	KindCreateNote,
	KindReplyToPeer,
	KindCompleteFocusSession,
	KindJoinCircle,
	KindUpvoteNote,
	KindCommentNote,
	KindUpdateProfile,
	KindShareLink,
}

// Valid reports whether k is a known action kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}
