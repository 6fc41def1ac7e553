package devserver

// clientScript connects to /livereload on the same origin. css messages re-fetch
// stylesheets in place, reload messages reload the page and error messages show an
// overlay until the next successful run.
const clientScript = `(() => {
  if (window.__ASSETPIPE_LR__) return;
  window.__ASSETPIPE_LR__ = true;
  const overlayID = '__assetpipe_error__';
  function hideOverlay() {
    const el = document.getElementById(overlayID);
    if (el) el.remove();
  }
  function showOverlay(msg) {
    let el = document.getElementById(overlayID);
    if (!el) {
      el = document.createElement('pre');
      el.id = overlayID;
      el.style.cssText = 'position:fixed;inset:0;margin:0;padding:2em;z-index:2147483647;' +
        'background:rgba(20,20,20,.92);color:#ff6b6b;font:14px/1.5 monospace;white-space:pre-wrap;overflow:auto';
      el.onclick = hideOverlay;
      document.body.appendChild(el);
    }
    el.textContent = msg;
  }
  function refreshCSS() {
    document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
      const url = new URL(link.href, location.href);
      if (url.origin !== location.origin) return;
      url.searchParams.set('livereload', Date.now());
      const next = link.cloneNode();
      next.href = url.toString();
      next.onload = () => link.remove();
      link.after(next);
    });
  }
  function connect() {
    const es = new EventSource('/livereload');
    es.onmessage = (e) => {
      let m;
      try { m = JSON.parse(e.data); } catch (_) { return; }
      if (m.kind === 'error') { showOverlay(m.message || 'build failed'); return; }
      hideOverlay();
      if (m.kind === 'css') { refreshCSS(); return; }
      if (m.kind === 'reload') location.reload();
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

const scriptTag = `<script async src="/livereload.js"></script>`
