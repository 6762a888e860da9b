package scan

// PromotionNotifier propagates the collector's final promote/demote decision
// into handle generation bookkeeping and to the synchronization-object cache.
// The cache is process-global: in server mode only the worker with
// ThreadIndex 0 notifies it, so N workers produce exactly one notification.
type PromotionNotifier struct {
	table      HandleTable
	cache      SyncBlockCache
	serverMode bool
}

func NewPromotionNotifier(table HandleTable, cache SyncBlockCache, serverMode bool) *PromotionNotifier {
	return &PromotionNotifier{table: table, cache: cache, serverMode: serverMode}
}

// PromotionsGranted ages surviving condemned-range handles one generation
// forward so future cycles condemn them correctly.
func (n *PromotionNotifier) PromotionsGranted(condemned, maxGen int, sc *ScanContext) {
	n.table.AgeAll(condemned, maxGen)
	if !n.serverMode || sc.ThreadIndex == 0 {
		n.cache.PromotionsGranted(maxGen)
	}
}

// Demote is the inverse, used when condemned-generation objects were not
// promoted (an aborted or partial collection): handle ages are rejuvenated so
// the next cycle scans them again as young.
func (n *PromotionNotifier) Demote(condemned, maxGen int, sc *ScanContext) {
	n.table.RejuvenateAll(condemned, maxGen)
	if !n.serverMode || sc.ThreadIndex == 0 {
		n.cache.Demote(maxGen)
	}
}
