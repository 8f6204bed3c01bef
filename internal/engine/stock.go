// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package engine

import (
	"context"

	"github.com/tomtom215/stocksync/internal/logging"
	"github.com/tomtom215/stocksync/internal/models"
)

// stockEffect is the cross-entity side effect of a stock movement: the
// referenced product with its stock level already adjusted.
type stockEffect struct {
	product models.Entity
}

// computeStockEffect derives the product adjustment for a movement, in
// memory, without touching any store. An inbound movement raises the
// product's currentStock by the movement quantity; an outbound movement
// lowers it. Movements referencing no or an unknown product have no
// effect beyond themselves.
func (o *Orchestrator) computeStockEffect(movement *models.Entity) *stockEffect {
	productID := movement.String("productId")
	if productID == "" {
		return nil
	}

	var delta float64
	switch movement.String("type") {
	case "in":
		delta = movement.Number("quantity")
	case "out":
		delta = -movement.Number("quantity")
	default:
		logging.Warn().Str("movementType", movement.String("type")).
			Msg("movement with unknown type; stock level unchanged")
		return nil
	}

	for _, p := range o.store.GetCollection(models.Products) {
		if p.ID != productID {
			continue
		}
		product := p.Clone()
		product.Fields["currentStock"] = product.Number("currentStock") + delta
		product.SyncStatus = models.StatusPending
		return &stockEffect{product: product}
	}

	logging.Warn().Str("productId", productID).
		Msg("movement references unknown product; stock level unchanged")
	return nil
}

// applyStockEffect persists the adjusted product and propagates it like
// any other update.
func (o *Orchestrator) applyStockEffect(ctx context.Context, eff *stockEffect) {
	o.updateStored(models.Products, eff.product)
	settled := o.syncOrQueue(ctx, models.Products, eff.product)
	o.publishSaved(models.Products, settled.ID, "update")
}
