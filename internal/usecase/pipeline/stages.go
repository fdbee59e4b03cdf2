package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/usecase/summarize"
)

// stageScrape fans out over the source adapters and persists the harvested
// items. Adapter failures are advisory: they are recorded per adapter and
// the stage carries on with what arrived.
func (s *Service) stageScrape(ctx context.Context, st *runState) error {
	result, err := s.fetcher.FetchAll(ctx, st.from, st.to)
	if err != nil {
		return err
	}

	st.run.Counters.Scraped = len(result.Items)
	st.run.Counters.FailedAdapters = result.FailedAdapters
	for range result.FailedAdapters {
		st.run.Counters.CountFailure("fetch")
	}

	videos := make([]*entity.VideoItem, 0, len(result.Items))
	webs := make([]*entity.WebItem, 0, len(result.Items))
	for _, tagged := range result.Items {
		switch tagged.Item.Kind {
		case entity.ArticleKindVideo:
			videos = append(videos, tagged.Item.Video)
		case entity.ArticleKindWeb:
			webs = append(webs, tagged.Item.Web)
		}
	}

	if len(videos) > 0 {
		inserted, err := s.videos.UpsertBatch(ctx, videos)
		if err != nil {
			return fmt.Errorf("video upsert failed: %w", err)
		}
		st.run.Counters.NewItems += inserted
	}
	if len(webs) > 0 {
		inserted, err := s.webs.UpsertBatch(ctx, webs)
		if err != nil {
			return fmt.Errorf("web upsert failed: %w", err)
		}
		st.run.Counters.NewItems += inserted
	}
	return nil
}

// stageProcess enriches window items that still lack a body: videos without
// a transcript get one fetched now, after the upsert has already dropped
// duplicates, so the transcript cost is paid once per video.
func (s *Service) stageProcess(ctx context.Context, st *runState) error {
	if s.enricher == nil {
		return nil
	}

	pending, err := s.videos.ListMissingTranscript(ctx, st.from, st.to)
	if err != nil {
		return fmt.Errorf("transcript backlog query failed: %w", err)
	}

	for _, v := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		transcript, err := s.enricher.FetchTranscript(ctx, v.VideoID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			st.run.Counters.CountFailure("enrich")
			slog.WarnContext(ctx, "transcript fetch failed",
				slog.String("video_id", v.VideoID),
				slog.String("error", err.Error()))
			continue
		}
		if transcript == "" {
			// 字幕トラックが無い動画は説明文から要約する
			continue
		}

		if err := s.videos.SetTranscript(ctx, v.VideoID, transcript); err != nil {
			st.run.Counters.CountFailure("store")
			slog.WarnContext(ctx, "transcript store failed",
				slog.String("video_id", v.VideoID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// stageDigest summarizes every window item that has no summary yet.
func (s *Service) stageDigest(ctx context.Context, st *runState) error {
	videos, err := s.videos.ListWindow(ctx, st.from, st.to)
	if err != nil {
		return fmt.Errorf("video window query failed: %w", err)
	}
	webs, err := s.webs.ListWindow(ctx, st.from, st.to)
	if err != nil {
		return fmt.Errorf("web window query failed: %w", err)
	}

	inputs := make([]summarize.Input, 0, len(videos)+len(webs))
	for _, v := range videos {
		inputs = append(inputs, summarize.InputFromVideo(v))
	}
	for _, w := range webs {
		inputs = append(inputs, summarize.InputFromWeb(w))
	}

	stats, err := s.digester.Run(ctx, inputs)
	st.run.Counters.Summarized = stats.Summarized
	st.run.Counters.Skipped += stats.Skipped
	for kind, n := range stats.FailureKinds {
		for i := 0; i < n; i++ {
			st.run.Counters.CountFailure(kind)
		}
	}
	return err
}

// stageIndex embeds summaries into the vector index. The candidate set is
// "summaries without a vector record", which doubles as the reconciliation
// pass: a run that crashed between the summary write and the vector write
// is repaired here without re-asking the summary model.
func (s *Service) stageIndex(ctx context.Context, st *runState) error {
	stats, err := s.indexer.Run(ctx)
	st.run.Counters.Indexed = stats.Indexed
	st.run.Counters.Skipped += stats.Duplicates
	for i := 0; i < stats.Failed; i++ {
		st.run.Counters.CountFailure("index")
	}
	return err
}

// stageRank scores the window against the reader profile and keeps the
// ordered top-N for the email stage.
func (s *Service) stageRank(ctx context.Context, st *runState) error {
	result, err := s.ranker.Run(ctx, st.from, st.to, st.opts.TopN)
	st.run.Counters.Ranked = len(result.Items)
	for i := 0; i < result.Degraded; i++ {
		st.run.Counters.CountFailure("rank_degraded")
	}
	for i := 0; i < result.Dropped; i++ {
		st.run.Counters.CountFailure("rank_dropped")
	}
	if err != nil {
		return err
	}
	st.ranked = result.Items
	return nil
}

// stageEmail delivers the digest, honoring the skip_email toggle. Transport
// failure is advisory: the run keeps its results either way.
func (s *Service) stageEmail(ctx context.Context, st *runState) error {
	return s.deliver(ctx, st, false)
}

// stageSendNow is the email stage for the on-demand send operation, which
// exists to send and therefore ignores the skip_email toggle.
func (s *Service) stageSendNow(ctx context.Context, st *runState) error {
	return s.deliver(ctx, st, true)
}

func (s *Service) deliver(ctx context.Context, st *runState, force bool) error {
	var err error
	if force {
		st.delivery, err = s.mailer.SendNow(ctx, st.ranked, st.opts.Recipient, st.opts.Subject)
	} else if st.opts.SkipEmail {
		st.delivery, err = s.mailer.Render(ctx, st.ranked)
	} else {
		st.delivery, err = s.mailer.Deliver(ctx, st.ranked, st.opts.Recipient, st.opts.Subject)
	}

	st.run.Counters.Emailed = st.delivery.Emailed
	st.run.Counters.Rendered = st.delivery.Rendered
	if st.delivery.IntroDegraded {
		st.run.Counters.CountFailure("intro_degraded")
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		st.run.Counters.CountFailure("transport")
		slog.WarnContext(ctx, "digest delivery failed", slog.String("error", err.Error()))
	}
	return nil
}
