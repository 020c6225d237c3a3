package router

import (
	"context"
	"reflect"
	"time"

	"github.com/durapensa/ksi-sub008/core"
	"github.com/durapensa/ksi-sub008/lineage"
	"github.com/durapensa/ksi-sub008/template"
	"github.com/durapensa/ksi-sub008/transformer"
)

// applyTransformer runs one matched definition against one event: the
// condition gate, the optional foreach expansion, and the render/emit of
// each target. Every failure mode is isolated to this definition.
func (r *Router) applyTransformer(ctx context.Context, ev core.Event, lc *lineage.Context, def transformer.Definition) {
	start := time.Now()
	sc := &template.Scope{
		Data:    ev.Data,
		Context: lc.AsMap(),
	}

	if def.Condition != "" {
		ok, err := r.conditions.Eval(def.Condition, sc)
		if err != nil {
			// Malformed condition skips this definition only.
			r.logger.Error("transformer condition failed",
				"transformer", def.Name,
				"event", ev.Name,
				"condition", def.Condition,
				"error", err.Error(),
			)
			r.reportError(ctx, map[string]any{
				"stage":       "condition",
				"event":       ev.Name,
				"transformer": def.Name,
				"target":      def.Target,
				"error":       err.Error(),
			})
			return
		}
		if !ok {
			r.logger.Debug("transformer condition false",
				"transformer", def.Name,
				"event", ev.Name,
			)
			return
		}
	}

	if def.Foreach != "" {
		v, ok := r.templates.ResolvePath(def.Foreach, sc)
		if !ok {
			r.logger.Debug("transformer foreach path missing",
				"transformer", def.Name,
				"event", ev.Name,
				"foreach", def.Foreach,
			)
			return
		}
		items := foreachItems(v)
		for _, item := range items {
			isc := &template.Scope{
				Data:    ev.Data,
				Context: sc.Context,
				Item:    item,
				HasItem: true,
			}
			r.renderAndEmit(ctx, ev, def, isc)
		}
		r.logger.Debug("transformer applied",
			"transformer", def.Name,
			"event", ev.Name,
			"target", def.Target,
			"items", len(items),
			"async", def.Async,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	r.renderAndEmit(ctx, ev, def, sc)
	r.logger.Debug("transformer applied",
		"transformer", def.Name,
		"event", ev.Name,
		"target", def.Target,
		"async", def.Async,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// renderAndEmit renders the mapping in sc and emits the target event.
// Render failures abort this single emission; sibling foreach items and
// sibling definitions proceed.
func (r *Router) renderAndEmit(ctx context.Context, ev core.Event, def transformer.Definition, sc *template.Scope) {
	rendered, err := r.templates.Render(def.Mapping, sc)
	if err != nil {
		r.logger.Error("transformer render failed",
			"transformer", def.Name,
			"event", ev.Name,
			"target", def.Target,
			"error", err.Error(),
		)
		r.reportError(ctx, map[string]any{
			"stage":       "render",
			"event":       ev.Name,
			"transformer": def.Name,
			"target":      def.Target,
			"error":       err.Error(),
		})
		return
	}

	data, _ := rendered.(map[string]any)

	if def.Async {
		// Detached work survives the triggering caller's cancellation but
		// keeps its ambient lineage, so the target is still recorded as a
		// child of the triggering event.
		dctx := context.WithoutCancel(ctx)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.Emit(dctx, def.Target, data); err != nil && !IsDepthExceededError(err) {
				r.logger.Error("async transformer emission failed",
					"transformer", def.Name,
					"target", def.Target,
					"error", err.Error(),
				)
			}
		}()
		return
	}

	if err := r.Emit(ctx, def.Target, data); err != nil {
		// The depth guard already surfaced its own event; anything else
		// is reported here.
		if IsDepthExceededError(err) {
			r.logger.Debug("transformer cascade halted by depth guard",
				"transformer", def.Name,
				"target", def.Target,
			)
			return
		}
		r.logger.Error("transformer emission failed",
			"transformer", def.Name,
			"event", ev.Name,
			"target", def.Target,
			"error", err.Error(),
		)
		r.reportError(ctx, map[string]any{
			"stage":       "emit",
			"event":       ev.Name,
			"transformer": def.Name,
			"target":      def.Target,
			"error":       err.Error(),
		})
	}
}

// foreachItems normalizes a resolved foreach value into the slice of loop
// items. Sequences iterate element-wise; a scalar iterates once as its
// own single item; nil iterates zero times.
func foreachItems(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}
