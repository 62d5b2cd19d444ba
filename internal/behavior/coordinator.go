package behavior

import (
	"github.com/thoughtjack/thoughtjack/internal/config"
)

// Resolved is the delivery + side-effect list in force for one request,
// with any side effects the current transport can't support already
// dropped.
type Resolved struct {
	Delivery    Delivery
	SideEffects []ResolvedSideEffect
	Skipped     []string // names of side effects dropped for this transport
}

// ResolvedSideEffect pairs a built SideEffect with the trigger point
// (on_connect, on_request, continuous, on_subscribe, on_unsubscribe) its
// configuration named, since the built SideEffect itself only knows how to
// fire, not when (§4.5).
type ResolvedSideEffect struct {
	Effect  SideEffect
	Trigger string
}

// Coordinator resolves the effective delivery and side-effect list from
// (highest wins): CLI override > current tool/resource/prompt's behavior >
// current phase's behavior > baseline behavior > default (§4.5).
type Coordinator struct {
	cliDeliveryKind string
	baseline        *config.Behavior
	transport       TransportKind
}

// NewCoordinator builds a Coordinator. cliDeliveryKind is the --behavior
// flag value, empty if unset.
func NewCoordinator(cliDeliveryKind string, baseline *config.Behavior, transport TransportKind) *Coordinator {
	return &Coordinator{cliDeliveryKind: cliDeliveryKind, baseline: baseline, transport: transport}
}

// Resolve picks the delivery and side effects in force, given the
// behavior attached to the dispatched tool/resource/prompt (itemBehavior,
// may be nil) and the current phase (phaseBehavior, may be nil).
func (c *Coordinator) Resolve(itemBehavior, phaseBehavior *config.Behavior) (Resolved, error) {
	delivery, err := c.resolveDelivery(itemBehavior, phaseBehavior)
	if err != nil {
		return Resolved{}, err
	}

	cfgs := c.resolveSideEffectConfigs(itemBehavior, phaseBehavior)
	var effects []ResolvedSideEffect
	var skipped []string
	for _, cfg := range cfgs {
		eff, err := BuildSideEffect(cfg)
		if err != nil {
			return Resolved{}, err
		}
		if eff.SupportsTransport(c.transport) {
			effects = append(effects, ResolvedSideEffect{Effect: eff, Trigger: cfg.Trigger})
		} else {
			skipped = append(skipped, eff.Name())
		}
	}
	return Resolved{Delivery: delivery, SideEffects: effects, Skipped: skipped}, nil
}

func (c *Coordinator) resolveDelivery(itemBehavior, phaseBehavior *config.Behavior) (Delivery, error) {
	if c.cliDeliveryKind != "" {
		return BuildDelivery(&config.DeliveryConfig{Kind: c.cliDeliveryKind})
	}
	if d := deliveryConfigOf(itemBehavior); d != nil {
		return BuildDelivery(d)
	}
	if d := deliveryConfigOf(phaseBehavior); d != nil {
		return BuildDelivery(d)
	}
	if d := deliveryConfigOf(c.baseline); d != nil {
		return BuildDelivery(d)
	}
	return BuildDelivery(nil)
}

func deliveryConfigOf(b *config.Behavior) *config.DeliveryConfig {
	if b == nil {
		return nil
	}
	return b.Delivery
}

// resolveSideEffectConfigs picks the first non-empty SideEffects list among
// item, phase, and baseline behavior, in that priority order. Side effects
// are not CLI-overridable; only delivery is (§6.1: --behavior names a
// delivery kind).
func (c *Coordinator) resolveSideEffectConfigs(itemBehavior, phaseBehavior *config.Behavior) []config.SideEffectConfig {
	if itemBehavior != nil && len(itemBehavior.SideEffects) > 0 {
		return itemBehavior.SideEffects
	}
	if phaseBehavior != nil && len(phaseBehavior.SideEffects) > 0 {
		return phaseBehavior.SideEffects
	}
	if c.baseline != nil && len(c.baseline.SideEffects) > 0 {
		return c.baseline.SideEffects
	}
	return nil
}
