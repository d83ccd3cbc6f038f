package observer

// extractionScript walks the live DOM of the main document (shadow-root and
// iframe content is not collected) and returns one JSON object describing the interactive
// surface plus a trimmed body-text sample and any data tables present.
// Selector construction prefers stable attributes (id, name, data-testid,
// aria-label, placeholder, type, href, role) so most of what it returns
// survives observer.IsValidSelector; the caller filters the rest out.
const extractionScript = `() => {
	function attr(el, name) { return el.getAttribute(name) || ""; }

	function buildSelector(el) {
		const id = attr(el, "id");
		if (id) return "#" + CSS.escape(id);
		const testId = attr(el, "data-testid");
		if (testId) return '[data-testid="' + testId.replace(/"/g, '') + '"]';
		const name = attr(el, "name");
		if (name) return el.tagName.toLowerCase() + '[name="' + name.replace(/"/g, '') + '"]';
		const ariaLabel = attr(el, "aria-label");
		if (ariaLabel) return el.tagName.toLowerCase() + '[aria-label="' + ariaLabel.replace(/"/g, '').slice(0, 80) + '"]';
		const placeholder = attr(el, "placeholder");
		if (placeholder) return el.tagName.toLowerCase() + '[placeholder="' + placeholder.replace(/"/g, '').slice(0, 80) + '"]';
		const href = attr(el, "href");
		if (href && el.tagName === "A") return 'a[href="' + href.replace(/"/g, '').slice(0, 200) + '"]';
		const role = attr(el, "role");
		if (role) return '[role="' + role + '"]';
		const type = attr(el, "type");
		if (type) return el.tagName.toLowerCase() + '[type="' + type + '"]';
		return "";
	}

	function label(el) {
		if (el.labels && el.labels.length > 0) return el.labels[0].textContent.trim().slice(0, 120);
		return (attr(el, "aria-label") || el.textContent || "").trim().slice(0, 120);
	}

	function visible(el) {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== "hidden" && style.display !== "none";
	}

	function describeAll(selectorList) {
		const out = [];
		for (const el of document.querySelectorAll(selectorList)) {
			if (!visible(el)) continue;
			const sel = buildSelector(el);
			if (!sel) continue;
			out.push({
				selector: sel,
				label: label(el),
				placeholder: attr(el, "placeholder"),
				type: attr(el, "type") || el.tagName.toLowerCase(),
			});
		}
		return out;
	}

	const clickableTexts = [];
	for (const el of document.querySelectorAll("a,button,[role=button],[onclick]")) {
		if (!visible(el)) continue;
		const text = (el.textContent || "").trim();
		if (text && text.length > 2 && text.length < 120) clickableTexts.push(text);
	}

	// FieldInventory.Tables holds one table's rows (each a list of cell
	// texts, header included); when a page has several tables, only the
	// first non-empty one is reported.
	let tables = [];
	for (const table of document.querySelectorAll("table")) {
		const rows = [];
		for (const tr of table.querySelectorAll("tr")) {
			const cells = Array.from(tr.querySelectorAll("th,td")).map((c) => (c.textContent || "").trim().slice(0, 200));
			if (cells.length > 0) rows.push(cells);
		}
		if (rows.length > 0) { tables = rows; break; }
	}

	return {
		bodyText: (document.body ? document.body.innerText : "").slice(0, 20000),
		clickableTexts: clickableTexts,
		inputs: describeAll("input:not([type=hidden])"),
		selects: describeAll("select"),
		textareas: describeAll("textarea"),
		buttons: describeAll("button,[role=button]"),
		links: describeAll("a[href]"),
		tables: tables,
	};
}`
