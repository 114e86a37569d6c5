// Package services holds the glue between the relation engine, the
// repositories and the notification broker.
package services

import (
	"context"
	"fmt"

	"github.com/anonto42/connect-hub/backend/internal/broker"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/repositories"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"github.com/pkg/errors"
)

// RelationNotifier turns relation-added events into persisted, live-pushed
// notifications for the owner of the target.
type RelationNotifier struct {
	broker   *broker.Broker
	users    repositories.UserRepository
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	projects repositories.ProjectRepository
}

func NewRelationNotifier(
	b *broker.Broker,
	users repositories.UserRepository,
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	projects repositories.ProjectRepository,
) *RelationNotifier {
	return &RelationNotifier{
		broker:   b,
		users:    users,
		posts:    posts,
		comments: comments,
		projects: projects,
	}
}

// RelationAdded implements toggle.Listener
func (n *RelationNotifier) RelationAdded(ctx context.Context, event toggle.Event) error {
	var (
		ownerID    uint
		noun       string
		targetType string
	)

	switch event.Kind {
	case toggle.KindFollow:
		ownerID = event.TargetID
		targetType = "user"
	case toggle.KindPostLike:
		post, err := n.posts.GetPostByID(ctx, event.TargetID)
		if err != nil {
			return errors.Wrap(err, "load liked post")
		}
		ownerID, noun, targetType = post.UserID, "post", "post"
	case toggle.KindCommentLike:
		comment, err := n.comments.GetCommentByID(event.TargetID)
		if err != nil {
			return errors.Wrap(err, "load liked comment")
		}
		ownerID, noun, targetType = comment.UserID, "comment", "comment"
	case toggle.KindProjectLike:
		project, err := n.projects.GetProjectByID(ctx, event.TargetID)
		if err != nil {
			return errors.Wrap(err, "load liked project")
		}
		ownerID, noun, targetType = project.OwnerID, "project", "project"
	default:
		// saves are private
		return nil
	}

	if ownerID == event.ActorID {
		return nil
	}

	name, err := n.actorName(event.ActorID)
	if err != nil {
		return err
	}

	typ := models.NotificationTypeLike
	message := fmt.Sprintf("%s liked your %s", name, noun)
	if event.Kind == toggle.KindFollow {
		typ = models.NotificationTypeFollow
		message = fmt.Sprintf("%s started following you", name)
	}

	_, err = n.broker.Notify(ctx, ownerID, event.ActorID, typ, message, broker.WithTarget(targetType, event.TargetID))
	return err
}

// CommentAdded notifies the post author about a new comment
func (n *RelationNotifier) CommentAdded(ctx context.Context, comment *models.Comment) error {
	post, err := n.posts.GetPostByID(ctx, comment.PostID)
	if err != nil {
		return errors.Wrap(err, "load commented post")
	}
	if post.UserID == comment.UserID {
		return nil
	}

	name, err := n.actorName(comment.UserID)
	if err != nil {
		return err
	}

	_, err = n.broker.Notify(ctx, post.UserID, comment.UserID, models.NotificationTypeComment,
		fmt.Sprintf("%s commented on your post", name),
		broker.WithTarget("post", post.ID),
	)
	return err
}

func (n *RelationNotifier) actorName(id uint) (string, error) {
	user, err := n.users.GetUserByID(id)
	if err != nil {
		return "", errors.Wrapf(err, "load actor %d", id)
	}
	return user.Label(), nil
}
