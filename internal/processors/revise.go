package processors

import "context"

// Review is a critic's verdict on a draft.
type Review struct {
	Approved bool   `json:"is_approved"`
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

// reviseLoop reviews draft and revises it at most maxRevisions times. The
// returned review belongs to the returned draft; an unapproved review means
// the revision budget ran out.
func reviseLoop[T any](
	ctx context.Context,
	draft T,
	maxRevisions int,
	review func(context.Context, T) (Review, error),
	revise func(context.Context, T, string) (T, error),
) (T, Review, error) {
	verdict, err := review(ctx, draft)
	if err != nil {
		return draft, verdict, err
	}

	for i := 0; !verdict.Approved && i < maxRevisions; i++ {
		next, err := revise(ctx, draft, verdict.Feedback)
		if err != nil {
			return draft, verdict, err
		}
		draft = next

		if verdict, err = review(ctx, draft); err != nil {
			return draft, verdict, err
		}
	}

	return draft, verdict, nil
}
