// Package overlay builds the in-page overlay script (component E): an
// opaque, self-contained text blob parameterized only by the annotation
// service's port. The script itself is a foreign-language payload — it is
// never parsed or type-checked here, only assembled and handed to the
// session manager for evaluation in the page.
package overlay

import "fmt"

// Build returns the page-side overlay script for the annotation service
// listening on port. The script is idempotent (guards against double
// injection), exposes a refresh function and a processing-state setter by
// well-known global names, and talks to the annotation HTTP API embedded
// at this port.
func Build(port int) string {
	return fmt.Sprintf(overlayTemplate, port)
}

const overlayTemplate = `(() => {
  if (window.__agentbridgeOverlay) {
    window.__agentbridgeOverlay.refresh();
    return;
  }

  const PORT = %d;
  const BASE = 'http://localhost:' + PORT;

  const root = document.createElement('div');
  root.setAttribute('data-agentbridge-ui', 'true');
  root.style.cssText = 'position:fixed;bottom:12px;right:12px;z-index:2147483647;';
  document.documentElement.appendChild(root);

  let badgeCount = 0;

  function setBadge(n) {
    badgeCount = n;
    root.textContent = n > 0 ? ('annotations: ' + n) : '';
  }

  function refresh() {
    fetch(BASE + '/annotations')
      .then((r) => r.json())
      .then((list) => setBadge(Array.isArray(list) ? list.filter((a) => a.status === 'open').length : 0))
      .catch(() => {});
  }

  function setProcessingState(state) {
    root.setAttribute('data-agentbridge-state', state);
  }

  function sendClick() {
    fetch(BASE + '/annotations/send', { method: 'POST' }).catch(() => {});
  }

  function removeBadge(annotationId) {
    const pin = document.querySelector('[data-agentbridge-pin="' + annotationId + '"]');
    if (pin) pin.remove();
    refresh();
  }

  window.__agentbridgeOverlay = {
    refresh: refresh,
    setProcessingState: setProcessingState,
    sendClick: sendClick,
    removeBadge: removeBadge,
    port: PORT,
  };

  document.addEventListener('click', (ev) => {
    if (ev.altKey && ev.shiftKey) {
      sendClick();
    }
  });

  refresh();
})();`
