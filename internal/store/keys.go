package store

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Key layout. Index keys are key-only (empty value) and end in the id of the
// record they point at.
const (
	profilePrefix            = "profile:"
	profileIdxUsernamePrefix = "profile:idx:username:"

	friendPrefix = "friend:"

	groupPrefix          = "group:"
	groupIdxMemberPrefix = "group:idx:member:"

	invitationPrefix          = "invitation:"
	invitationIdxSenderPrefix = "invitation:idx:sender:"

	joinRequestPrefix             = "joinreq:"
	joinRequestIdxRequesterPrefix = "joinreq:idx:requester:"
	joinRequestIdxReceiverPrefix  = "joinreq:idx:receiver:"

	updatePrefix        = "update:"
	updateIdxUserPrefix = "update:idx:user:"

	reactionPrefix = "reaction:"

	bucketPrefix              = "bucket:"
	bucketMemberPrefix        = "bucketmember:"
	bucketMemberIdxUserPrefix = "bucketmember:idx:user:"
)

func profileKey(userID string) string { return profilePrefix + userID }

func profileUsernameKey(folded string) string { return profileIdxUsernamePrefix + folded }

func friendKey(ownerID, otherID string) string {
	return friendPrefix + ownerID + ":" + otherID
}

func friendOwnerPrefix(ownerID string) string { return friendPrefix + ownerID + ":" }

func groupKey(id string) string { return groupPrefix + id }

func groupMemberKey(userID, groupID string) string {
	return groupIdxMemberPrefix + userID + ":" + groupID
}

func invitationKey(id string) string { return invitationPrefix + id }

func invitationSenderKey(userID, id string) string {
	return invitationIdxSenderPrefix + userID + ":" + id
}

func joinRequestKey(id string) string { return joinRequestPrefix + id }

func joinRequestRequesterKey(userID, id string) string {
	return joinRequestIdxRequesterPrefix + userID + ":" + id
}

func joinRequestReceiverKey(userID, id string) string {
	return joinRequestIdxReceiverPrefix + userID + ":" + id
}

func updateKey(id string) string { return updatePrefix + id }

func updateUserKey(userID string, createdAt time.Time, id string) string {
	return updateIdxUserPrefix + userID + ":" + invertedTimestamp(createdAt) + ":" + id
}

func reactionKey(updateID, userID, typ string) string {
	return reactionPrefix + updateID + ":" + userID + ":" + typ
}

func bucketKey(key string) string { return bucketPrefix + key }

func bucketMemberKey(key, userID string) string {
	return bucketMemberPrefix + key + ":" + userID
}

func bucketMemberUserKey(userID, key string) string {
	return bucketMemberIdxUserPrefix + userID + ":" + key
}

// invertedTimestamp returns a string that sorts in descending order.
func invertedTimestamp(t time.Time) string {
	return fmt.Sprintf("%019d", math.MaxInt64-t.UnixNano())
}

// lastSegment returns the part of key after the final ':'.
func lastSegment(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
