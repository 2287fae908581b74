package view

// dropScript forwards dropped files to the upload form with source=drop.
const dropScript = `(function(){
var z=document.currentScript.previousElementSibling;
if(!z)return;
z.addEventListener('dragover',function(e){e.preventDefault();z.classList.add('dragging');});
z.addEventListener('dragleave',function(e){e.preventDefault();z.classList.remove('dragging');});
z.addEventListener('drop',function(e){
e.preventDefault();z.classList.remove('dragging');
if(!e.dataTransfer.files||!e.dataTransfer.files[0])return;
z.elements.file.files=e.dataTransfer.files;
z.elements.source.value='drop';
htmx.trigger(z,'change');
});
})();`

const css = `
*{box-sizing:border-box}
body{margin:0;font-family:system-ui,sans-serif;background:#f8fafc;color:#334155}
.layout{display:flex;height:100vh;overflow:hidden}
.sidebar{width:400px;flex-shrink:0;background:#fff;border-right:1px solid #e2e8f0;display:flex;flex-direction:column}
.sidebar header{padding:24px;border-bottom:1px solid #f1f5f9}
.logo{display:inline-flex;width:32px;height:32px;border-radius:8px;background:#2563eb;color:#fff;font-weight:700;align-items:center;justify-content:center}
.sidebar h1{display:inline;margin-left:12px;font-size:20px;color:#1e293b}
.tagline{margin:4px 0 0 44px;font-size:12px;color:#64748b}
.step{padding:24px 24px 0}
.step h2{font-size:13px;text-transform:uppercase;letter-spacing:.05em;color:#0f172a}
.step.disabled{opacity:.5;pointer-events:none}
.step input[type=text]{width:100%;padding:10px 16px;border:1px solid #cbd5e1;border-radius:8px}
.hint{font-size:12px;color:#94a3b8}
.notice{background:#fef2f2;color:#dc2626;padding:8px 12px;border-radius:8px;font-size:13px}
.dropzone{position:relative;border:2px dashed #cbd5e1;border-radius:12px;padding:32px;text-align:center}
.dropzone.dragging{border-color:#3b82f6;background:#eff6ff}
.dropzone input[type=file]{position:absolute;inset:0;opacity:0;cursor:pointer}
.dropzone .small{font-size:10px;color:#94a3b8}
.preview{position:relative;border-radius:12px;overflow:hidden;border:1px solid #e2e8f0}
.preview img{width:100%;max-height:300px;object-fit:cover;display:block}
.overlay{position:absolute;inset:0;background:rgba(0,0,0,.4);opacity:0;display:flex;align-items:center;justify-content:center;margin:0}
.preview:hover .overlay{opacity:1}
.sidebar footer{margin-top:auto;padding:24px;border-top:1px solid #f1f5f9;background:#f8fafc}
.primary{width:100%;padding:14px;border:0;border-radius:12px;background:#2563eb;color:#fff;font-weight:600;cursor:pointer}
.primary:disabled{background:#94a3b8;cursor:not-allowed}
.spinner{display:inline-block;width:14px;height:14px;margin-right:8px;border:2px solid #fff;border-top-color:transparent;border-radius:50%;animation:spin 1s linear infinite}
@keyframes spin{to{transform:rotate(360deg)}}
main{flex:1;display:flex;flex-direction:column;padding:24px;overflow:auto}
.ready,.failed,.pending{margin:auto;text-align:center;max-width:32rem}
.failed{background:#fef2f2;color:#dc2626;padding:24px;border-radius:12px;border:1px solid #fee2e2}
.pending .bar{height:16px;background:#f1f5f9;border-radius:4px;margin:16px auto;width:75%}
.pending .bar.short{width:50%}
.report{background:#fff;border:1px solid #e2e8f0;border-radius:12px}
.report header{display:flex;justify-content:space-between;align-items:center;padding:16px;border-bottom:1px solid #f1f5f9;background:#f8fafc}
.report header h2{margin:0;font-size:16px}
.badge{font-size:12px;padding:4px 8px;background:#dcfce7;color:#15803d;border-radius:999px}
.prose{padding:24px}
.report-spacer{height:8px}
.sources{margin:0 24px 24px;padding-top:24px;border-top:1px solid #f1f5f9}
.sources h4{font-size:12px;text-transform:uppercase;color:#94a3b8}
.sources a{display:block;padding:12px;margin-bottom:8px;border:1px solid #f1f5f9;border-radius:8px;background:#f8fafc;text-decoration:none}
.sources .title{display:block;color:#334155;font-weight:500}
.sources .uri{display:block;font-size:12px;color:#94a3b8;overflow:hidden;text-overflow:ellipsis;white-space:nowrap}
`
