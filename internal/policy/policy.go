// Package policy holds the authorization rules for posts as pure functions.
// Ownership-or-admin is the single primitive shared by view, edit and delete;
// keeping it as one rule avoids the checks drifting apart over time.
package policy

import "cmsmini/internal/model"

// CanView reports whether the user may view the post.
// Admins may view any post, everyone else only their own.
func CanView(userID int, role string, post *model.Post) bool {
	return role == model.RoleAdmin || post.AuthorID == userID
}

// CanEdit reports whether the user may edit the post. Same rule as CanView.
func CanEdit(userID int, role string, post *model.Post) bool {
	return CanView(userID, role, post)
}

// CanDelete reports whether the user may delete the post. Same rule as CanView.
func CanDelete(userID int, role string, post *model.Post) bool {
	return CanView(userID, role, post)
}
